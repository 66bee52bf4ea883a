// Package analysis asks an OpenAI-compatible chat endpoint for structured
// marketing and design critiques of competitor pages, copy and images.
package analysis

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/cost"
	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/resilience"
	"github.com/sells-group/competitor-monitor/pkg/openrouter"
)

const (
	// MaxTextRunes caps the copy sent to the text model.
	MaxTextRunes = 10000
	// MaxContextParagraphRunes caps the page text quoted next to a screenshot.
	MaxContextParagraphRunes = 300

	imageMaxTokens      = 2000
	screenshotMaxTokens = 3000

	// EmptyContentSummary is returned when a page yielded nothing to analyze.
	EmptyContentSummary = "No content could be extracted for analysis"
)

// ChatClient sends one chat-completions request. openrouter.Client satisfies
// it, as does AnthropicChat.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error)
}

// Config selects models and call policy.
type Config struct {
	TextModel   string
	VisionModel string
	Temperature float64
	Language    string // language of the critique text, e.g. "Russian"

	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithBreaker shares a circuit breaker between analyzers talking to the same
// endpoint.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Analyzer) { a.breaker = cb }
}

// WithCost prices every completion with calc.
func WithCost(calc *cost.Calculator) Option {
	return func(a *Analyzer) { a.cost = calc }
}

// Analyzer runs the four analysis operations. It is safe for concurrent use.
type Analyzer struct {
	cfg     Config
	chat    ChatClient
	breaker *resilience.CircuitBreaker
	cost    *cost.Calculator
}

// New builds an Analyzer.
func New(cfg Config, chat ChatClient, opts ...Option) *Analyzer {
	if cfg.Language == "" {
		cfg.Language = "Russian"
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "llm"
	}
	a := &Analyzer{cfg: cfg, chat: chat}
	for _, o := range opts {
		o(a)
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(cfg.Breaker)
	}
	return a
}

// AnalyzeText critiques free-form marketing copy. Text beyond MaxTextRunes
// is dropped.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (*model.TextAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	req := openrouter.ChatCompletionRequest{
		Model: a.cfg.TextModel,
		Messages: []openrouter.Message{
			{Role: "system", Content: textSystem(a.cfg.Language)},
			{Role: "user", Content: "Analyze this glamping website text:\n\n" + truncateRunes(text, MaxTextRunes)},
		},
		Temperature:    a.temperature(),
		ResponseFormat: openrouter.JSONObject,
	}
	content, err := a.complete(ctx, "analyze_text", req)
	if err != nil {
		return nil, err
	}
	return model.TextAnalysisFromMap(RecoverJSON(content)), nil
}

// AnalyzeImage critiques a banner or screenshot. An empty mimeType is
// sniffed from the bytes.
func (a *Analyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*model.ImageAnalysis, error) {
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	req := openrouter.ChatCompletionRequest{
		Model: a.cfg.VisionModel,
		Messages: []openrouter.Message{{
			Role: "user",
			Content: []openrouter.ContentPart{
				openrouter.TextPart(imageInstructions(a.cfg.Language)),
				openrouter.ImagePart(DataURI(image, mimeType)),
			},
		}},
		Temperature: a.temperature(),
		MaxTokens:   intPtr(imageMaxTokens),
	}
	content, err := a.complete(ctx, "analyze_image", req)
	if err != nil {
		return nil, err
	}
	return model.ImageAnalysisFromMap(RecoverJSON(content)), nil
}

// AnalyzeScreenshot critiques a rendered page from its screenshot plus the
// extracted headline fields. Empty fields are left out of the context.
func (a *Analyzer) AnalyzeScreenshot(ctx context.Context, screenshot []byte, url, title, h1, paragraph string) (*model.TextAnalysis, error) {
	if len(screenshot) == 0 {
		return nil, ErrEmptyInput
	}

	lines := []string{"URL: " + url}
	if title != "" {
		lines = append(lines, "Title: "+title)
	}
	if h1 != "" {
		lines = append(lines, "Heading (H1): "+h1)
	}
	if paragraph != "" {
		lines = append(lines, "Page text: "+truncateRunes(paragraph, MaxContextParagraphRunes))
	}

	req := openrouter.ChatCompletionRequest{
		Model: a.cfg.VisionModel,
		Messages: []openrouter.Message{
			{Role: "system", Content: screenshotSystem(a.cfg.Language)},
			{Role: "user", Content: []openrouter.ContentPart{
				openrouter.TextPart("Run a full competitive analysis of this website:\n\n" + strings.Join(lines, "\n")),
				openrouter.ImagePart(DataURI(screenshot, "")),
			}},
		},
		Temperature: a.temperature(),
		MaxTokens:   intPtr(screenshotMaxTokens),
	}
	content, err := a.complete(ctx, "analyze_screenshot", req)
	if err != nil {
		return nil, err
	}
	return model.TextAnalysisFromMap(RecoverJSON(content)), nil
}

// AnalyzeParsedContent critiques a page from its extracted fields alone.
// When title, h1 and paragraph are all empty it returns a placeholder
// without calling the endpoint.
func (a *Analyzer) AnalyzeParsedContent(ctx context.Context, url, title, h1, paragraph string) (*model.TextAnalysis, error) {
	var sections []string
	for _, f := range []struct{ label, value string }{
		{"Title", title},
		{"Heading (H1)", h1},
		{"Body", paragraph},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			sections = append(sections, f.label+": "+v)
		}
	}
	if len(sections) == 0 {
		zap.L().Warn("analysis: nothing extracted, skipping remote call", zap.String("url", url))
		placeholder := model.NewTextAnalysis()
		placeholder.Summary = EmptyContentSummary
		return placeholder, nil
	}
	if url != "" {
		sections = append([]string{"URL: " + url}, sections...)
	}
	return a.AnalyzeText(ctx, strings.Join(sections, "\n\n"))
}

// complete runs req through the breaker and retry policy and returns the
// reply text.
func (a *Analyzer) complete(ctx context.Context, op string, req openrouter.ChatCompletionRequest) (string, error) {
	retry := a.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("analysis", op)
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*openrouter.ChatCompletionResponse, error) {
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*openrouter.ChatCompletionResponse, error) {
			resp, err := a.chat.ChatCompletion(ctx, req)
			if err != nil {
				return nil, markTransient(err)
			}
			return resp, nil
		})
	})
	if err != nil {
		rerr := classify(op, req.Model, err)
		zap.L().Error("analysis: remote call failed",
			zap.String("operation", op),
			zap.String("model", req.Model),
			zap.Int("status", rerr.StatusCode),
			zap.Bool("credentials", rerr.Kind == ErrCredentialsInvalid),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", rerr
	}

	content := resp.Text()
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("response_chars", len(content)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if a.cost != nil {
		if usd, ok := a.cost.Completion(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
			fields = append(fields, zap.Float64("cost_usd", usd))
		}
	}
	zap.L().Info("analysis: completion", fields...)
	return content, nil
}

func (a *Analyzer) temperature() *float64 {
	t := a.cfg.Temperature
	return &t
}

// DataURI encodes image as a base64 data URI. An empty or non-image
// mimeType is replaced by the sniffed type, falling back to image/jpeg.
func DataURI(image []byte, mimeType string) string {
	return "data:" + imageMIME(image, mimeType) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func imageMIME(image []byte, mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	sniffed := http.DetectContentType(image)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/jpeg"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func intPtr(n int) *int { return &n }
