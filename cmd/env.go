package main

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/analysis"
	"github.com/sells-group/competitor-monitor/internal/config"
	"github.com/sells-group/competitor-monitor/internal/cost"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
	"github.com/sells-group/competitor-monitor/internal/render"
	"github.com/sells-group/competitor-monitor/internal/resilience"
	"github.com/sells-group/competitor-monitor/internal/store"
	anthropicpkg "github.com/sells-group/competitor-monitor/pkg/anthropic"
	"github.com/sells-group/competitor-monitor/pkg/openrouter"
)

// credentialsHint is shown whenever the endpoint rejects the API key.
const credentialsHint = "the analysis endpoint rejected the API key; set llm.api_key (or OPENROUTER_API_KEY) and retry"

// appEnv holds the wired pipeline, the history it records to and the
// running LLM spend.
type appEnv struct {
	Pipeline *pipeline.Pipeline
	History  store.History
	Cost     *cost.Calculator
}

// Close logs the session spend and releases resources held by the
// environment.
func (e *appEnv) Close() {
	if e.Cost != nil {
		if usd, calls := e.Cost.Total(); calls > 0 {
			zap.L().Info("llm spend",
				zap.Int("completions", calls),
				zap.Float64("cost_usd", usd),
				zap.Strings("unpriced_models", e.Cost.Unpriced()),
			)
		}
	}
	if e.History != nil {
		if err := e.History.Close(); err != nil {
			zap.L().Warn("close history", zap.Error(err))
		}
	}
}

// initEnv validates the config for mode and builds the pipeline. Callers
// should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	hist, err := openHistory(ctx, c)
	if err != nil {
		return nil, err
	}

	renderer, err := newRenderer(c)
	if err != nil {
		_ = hist.Close()
		return nil, err
	}

	calc := newCostCalculator(c)
	p := pipeline.New(renderer, newAnalyzer(c, calc),
		pipeline.WithHistory(hist),
		pipeline.WithMaxConcurrent(c.Batch.MaxConcurrent),
	)
	return &appEnv{Pipeline: p, History: hist, Cost: calc}, nil
}

func openHistory(ctx context.Context, c *config.Config) (store.History, error) {
	h, err := store.Open(ctx, c.History.Driver, c.History.DatabaseURL, c.History.MaxItems)
	if err != nil {
		return nil, eris.Wrap(err, "open history")
	}
	return h, nil
}

func newRenderer(c *config.Config) (render.Renderer, error) {
	return render.New(render.Config{
		Engine:         c.Render.Engine,
		Timeout:        c.Render.Timeout(),
		Settle:         c.Render.Settle(),
		UserAgent:      c.Render.UserAgent,
		RemoteURL:      c.Render.RemoteURL,
		BrowserBin:     c.Render.BrowserBin,
		NoSandbox:      c.Render.NoSandbox,
		ViewportWidth:  c.Render.ViewportWidth,
		ViewportHeight: c.Render.ViewportHeight,
		JPEGQuality:    c.Render.JPEGQuality,
		MaxConcurrent:  c.Render.MaxConcurrent,
	})
}

// newChatClient picks the endpoint backend and the models that go with it.
func newChatClient(c *config.Config) (analysis.ChatClient, string, string) {
	if c.LLM.Provider == "anthropic" {
		var opts []anthropicpkg.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		zap.L().Info("llm: using anthropic",
			zap.String("key", config.MaskKey(c.Anthropic.Key)),
			zap.String("text_model", c.Anthropic.TextModel),
			zap.String("vision_model", c.Anthropic.VisionModel),
		)
		chat := analysis.NewAnthropicChat(anthropicpkg.NewClient(c.Anthropic.Key, opts...)).
			WithMaxTokens(c.Anthropic.MaxTokens)
		return chat, c.Anthropic.TextModel, c.Anthropic.VisionModel
	}

	zap.L().Info("llm: using openai-compatible endpoint",
		zap.String("base_url", c.LLM.BaseURL),
		zap.String("key", config.MaskKey(c.LLM.APIKey)),
		zap.String("text_model", c.LLM.TextModel),
		zap.String("vision_model", c.LLM.VisionModel),
	)
	client := openrouter.NewClient(c.LLM.APIKey,
		openrouter.WithBaseURL(c.LLM.BaseURL),
		openrouter.WithTimeout(c.LLM.Timeout()),
		openrouter.WithRateLimit(c.LLM.RequestsPerSecond),
		openrouter.WithAppName(c.LLM.AppName, ""),
	)
	return client, c.LLM.TextModel, c.LLM.VisionModel
}

// newCostCalculator applies configured price overrides to the built-in rates.
func newCostCalculator(c *config.Config) *cost.Calculator {
	overrides := make(cost.Rates, len(c.LLM.Pricing))
	for _, p := range c.LLM.Pricing {
		overrides[p.Model] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return cost.NewCalculator(cost.Merge(cost.DefaultRates(), overrides))
}

func newAnalyzer(c *config.Config, calc *cost.Calculator) *analysis.Analyzer {
	chat, textModel, visionModel := newChatClient(c)
	return analysis.New(analysis.Config{
		TextModel:   textModel,
		VisionModel: visionModel,
		Temperature: c.LLM.Temperature,
		Language:    c.LLM.Language,
		Retry:       resilience.FromRetrySettings(c.LLM.Retry.MaxAttempts, c.LLM.Retry.InitialBackoffMs, c.LLM.Retry.MaxBackoffMs),
		Breaker:     resilience.FromBreakerSettings("llm", c.LLM.Breaker.FailureThreshold, c.LLM.Breaker.CooldownSecs),
	}, chat, analysis.WithCost(calc))
}

// explain attaches the reconfiguration hint to credential failures.
func explain(err error) error {
	if errors.Is(err, analysis.ErrCredentialsInvalid) {
		return eris.Wrap(err, credentialsHint)
	}
	return err
}
