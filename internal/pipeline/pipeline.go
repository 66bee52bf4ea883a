// Package pipeline runs one competitor URL end to end: render the page, pick
// the analysis path that the snapshot supports, and record the result.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/competitor-monitor/internal/analysis"
	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/store"
)

// Renderer turns a URL into a snapshot. Failures are recorded on the
// snapshot, never returned.
type Renderer interface {
	Render(ctx context.Context, url string) *model.PageSnapshot
}

// Analyzer is the analysis surface the pipeline drives. *analysis.Analyzer
// implements it.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (*model.TextAnalysis, error)
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*model.ImageAnalysis, error)
	AnalyzeScreenshot(ctx context.Context, screenshot []byte, url, title, h1, paragraph string) (*model.TextAnalysis, error)
	AnalyzeParsedContent(ctx context.Context, url, title, h1, paragraph string) (*model.TextAnalysis, error)
}

// Outcome summarizes how far an invocation got.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeRenderFailed   Outcome = "render_failed"
	OutcomeAnalysisFailed Outcome = "analysis_failed"
)

// Result is the output of one AnalyzeCompetitor call. Snapshot is always set.
type Result struct {
	Snapshot *model.PageSnapshot `json:"snapshot"`
	Analysis *model.TextAnalysis `json:"analysis,omitempty"`
	Outcome  Outcome             `json:"outcome"`
	Fallback bool                `json:"fallback,omitempty"` // vision rejected, metadata-only analysis used
	Error    string              `json:"error,omitempty"`
}

// DefaultMaxConcurrent bounds AnalyzeAll when no limit is configured.
const DefaultMaxConcurrent = 3

// Pipeline wires a renderer, an analyzer and an optional history sink.
type Pipeline struct {
	renderer      Renderer
	analyzer      Analyzer
	history       store.History
	maxConcurrent int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory records every successful analysis in h.
func WithHistory(h store.History) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithMaxConcurrent bounds how many URLs AnalyzeAll processes at once.
func WithMaxConcurrent(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// New creates a Pipeline.
func New(renderer Renderer, analyzer Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		renderer:      renderer,
		analyzer:      analyzer,
		maxConcurrent: DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeCompetitor renders url and analyzes it. A failed render is not an
// error: the Result carries the snapshot with OutcomeRenderFailed and no
// analysis call is made. The returned Result is never nil.
func (p *Pipeline) AnalyzeCompetitor(ctx context.Context, url string) (*Result, error) {
	log := zap.L().With(zap.String("url", url))
	start := time.Now()

	snap := p.renderer.Render(ctx, url)
	if snap == nil {
		snap = model.FailedSnapshot(url, "", model.FailureUnavailable, "render: renderer returned no snapshot")
	}
	if snap.Failed() {
		log.Warn("pipeline: render failed",
			zap.String("failure", string(snap.Failure)),
			zap.String("error", snap.Error),
		)
		return &Result{Snapshot: snap, Outcome: OutcomeRenderFailed, Error: snap.Error}, nil
	}

	title, h1, para := model.Deref(snap.Title), model.Deref(snap.H1), model.Deref(snap.FirstParagraph)
	res := &Result{Snapshot: snap}

	var (
		a   *model.TextAnalysis
		err error
	)
	if snap.HasScreenshot() {
		a, err = p.analyzer.AnalyzeScreenshot(ctx, snap.Screenshot, url, title, h1, para)
		if errors.Is(err, analysis.ErrCredentialsInvalid) {
			log.Warn("pipeline: vision model rejected credentials, falling back to page text", zap.Error(err))
			res.Fallback = true
			a, err = p.analyzer.AnalyzeParsedContent(ctx, url, title, h1, para)
		}
	} else {
		a, err = p.analyzer.AnalyzeParsedContent(ctx, url, title, h1, para)
	}
	if err != nil {
		log.Error("pipeline: analysis failed", zap.Error(err))
		res.Outcome = OutcomeAnalysisFailed
		res.Error = err.Error()
		return res, err
	}

	res.Analysis = a
	res.Outcome = OutcomeOK
	p.record(ctx, model.HistoryEntry{
		Kind:     model.HistoryKindURL,
		Source:   url,
		Title:    title,
		Text:     a,
		Fallback: res.Fallback,
	})

	log.Info("pipeline: competitor analyzed",
		zap.String("engine", snap.Engine),
		zap.Bool("screenshot", snap.HasScreenshot()),
		zap.Bool("fallback", res.Fallback),
		zap.Int("design_score", a.DesignScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// AnalyzeAll runs AnalyzeCompetitor for every URL, at most maxConcurrent at
// a time. Results keep the order of urls; one failure does not stop the rest.
func (p *Pipeline) AnalyzeAll(ctx context.Context, urls []string) []*Result {
	results := make([]*Result, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(p.maxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			res, _ := p.AnalyzeCompetitor(ctx, u)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var ok, failed int
	for _, r := range results {
		if r.Outcome == OutcomeOK {
			ok++
		} else {
			failed++
		}
	}
	zap.L().Info("pipeline: batch complete",
		zap.Int("total", len(urls)),
		zap.Int("ok", ok),
		zap.Int("failed", failed),
	)
	return results
}

// AnalyzeText analyzes free-form copy and records it in the history.
func (p *Pipeline) AnalyzeText(ctx context.Context, text string) (*model.TextAnalysis, error) {
	a, err := p.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		return nil, err
	}
	p.record(ctx, model.HistoryEntry{Kind: model.HistoryKindText, Source: excerpt(text), Text: a})
	return a, nil
}

// AnalyzeImage analyzes an image and records it in the history under name.
func (p *Pipeline) AnalyzeImage(ctx context.Context, name string, image []byte, mimeType string) (*model.ImageAnalysis, error) {
	a, err := p.analyzer.AnalyzeImage(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}
	p.record(ctx, model.HistoryEntry{Kind: model.HistoryKindImage, Source: name, Image: a})
	return a, nil
}

// History returns the configured sink, or nil.
func (p *Pipeline) History() store.History { return p.history }

// record appends to the history sink. Sink failures are logged only.
func (p *Pipeline) record(ctx context.Context, e model.HistoryEntry) {
	if p.history == nil {
		return
	}
	if err := p.history.Append(ctx, e); err != nil {
		zap.L().Warn("pipeline: history append failed",
			zap.String("kind", string(e.Kind)),
			zap.String("source", e.Source),
			zap.Error(err),
		)
	}
}

const excerptRunes = 80

// excerpt shortens text to a single line for history listings.
func excerpt(text string) string {
	r := []rune(strings.Join(strings.Fields(text), " "))
	if len(r) <= excerptRunes {
		return string(r)
	}
	return string(r[:excerptRunes]) + "…"
}
