package render

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// Chain tries renderers in order. It moves on only when an engine reports
// FailureUnavailable; any other outcome, success or failure, is final.
type Chain struct {
	renderers []Renderer
}

// NewChain creates a Chain.
func NewChain(renderers ...Renderer) *Chain {
	return &Chain{renderers: renderers}
}

// Name implements Renderer.
func (c *Chain) Name() string {
	names := make([]string, len(c.renderers))
	for i, r := range c.renderers {
		names[i] = r.Name()
	}
	return strings.Join(names, ">")
}

// Render implements Renderer.
func (c *Chain) Render(ctx context.Context, url string) *model.PageSnapshot {
	var snap *model.PageSnapshot
	for _, r := range c.renderers {
		snap = r.Render(ctx, url)
		if snap.Failure != model.FailureUnavailable {
			return snap
		}
		zap.L().Warn("render: engine unavailable, trying next",
			zap.String("engine", r.Name()),
			zap.String("url", url),
			zap.String("error", snap.Error),
		)
	}
	if snap == nil {
		return model.FailedSnapshot(url, "", model.FailureUnavailable, "render: no engines configured")
	}
	return snap
}
