package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// RodRenderer drives headless Chrome through go-rod with the stealth
// patches applied. Every Render gets its own browser (or, for a remote
// Chrome, its own incognito context) and tears it down before returning.
type RodRenderer struct {
	cfg   Config
	slots *semaphore.Weighted
}

// NewRodRenderer builds a RodRenderer. At most cfg.MaxConcurrent browsers
// run at once.
func NewRodRenderer(cfg Config) *RodRenderer {
	cfg = cfg.withDefaults()
	return &RodRenderer{cfg: cfg, slots: semaphore.NewWeighted(int64(cfg.MaxConcurrent))}
}

// Name implements Renderer.
func (r *RodRenderer) Name() string { return EngineRod }

// Render implements Renderer.
func (r *RodRenderer) Render(ctx context.Context, rawURL string) *model.PageSnapshot {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, model.FailureInvalidURL, err.Error())
	}

	// Queueing for a slot is bounded by the caller only; the render budget
	// starts once a browser is ours.
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, model.FailureTimeout, "render: waiting for a browser slot: "+err.Error())
	}
	defer r.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	sess, err := r.open(ctx)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, model.FailureUnavailable, err.Error())
	}
	defer sess.close()

	page, err := stealth.Page(sess.target)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, model.FailureUnavailable, "render: open page: "+err.Error())
	}
	// Teardown uses the page handle without ctx so it still works after a timeout.
	defer func() {
		if err := page.Close(); err != nil {
			zap.L().Debug("render: close page", zap.Error(err))
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent, AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8"}); err != nil {
		zap.L().Warn("render: set user agent", zap.Error(err))
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.ViewportWidth,
		Height:            r.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		zap.L().Warn("render: set viewport", zap.Error(err))
	}

	p := page.Context(ctx)
	if err := p.Navigate(u.String()); err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, failureFor(ctx, err), "render: navigate: "+err.Error())
	}
	if err := p.WaitLoad(); err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, failureFor(ctx, err), "render: wait for load: "+err.Error())
	}
	if r.cfg.Settle > 0 {
		// Pages that keep polling never go idle; the settle window is best effort.
		if err := p.WaitIdle(r.cfg.Settle); err != nil && ctx.Err() != nil {
			return model.FailedSnapshot(rawURL, EngineRod, model.FailureTimeout, "render: settle: "+err.Error())
		}
	}

	doc, err := p.HTML()
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineRod, failureFor(ctx, err), "render: read dom: "+err.Error())
	}
	if block := DetectBlock(0, nil, doc); block != BlockNone {
		return model.FailedSnapshot(rawURL, EngineRod, model.FailureBlocked, fmt.Sprintf("render: blocked (%s)", block))
	}

	quality := r.cfg.JPEGQuality
	shot, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		if ctx.Err() != nil {
			return model.FailedSnapshot(rawURL, EngineRod, model.FailureTimeout, "render: screenshot: "+err.Error())
		}
		zap.L().Warn("render: screenshot failed, continuing without", zap.String("url", rawURL), zap.Error(err))
		shot = nil
	}

	zap.L().Info("render: page rendered",
		zap.String("url", rawURL),
		zap.Int("dom_bytes", len(doc)),
		zap.Int("screenshot_bytes", len(shot)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snapshot(rawURL, EngineRod, doc, shot)
}

// session is one browser (or incognito context) scoped to a single render.
type session struct {
	target *rod.Browser
	close  func()
}

// open launches or connects to Chrome. A launched process is bound to ctx
// and dies with it.
func (r *RodRenderer) open(ctx context.Context) (*session, error) {
	var (
		ws  string
		lch *launcher.Launcher
		err error
	)
	if r.cfg.RemoteURL != "" {
		ws, err = launcher.ResolveURL(r.cfg.RemoteURL)
		if err != nil {
			return nil, eris.Wrap(err, "render: resolve remote browser")
		}
	} else {
		lch = launcher.New().
			Context(ctx).
			Headless(true).
			NoSandbox(r.cfg.NoSandbox).
			Set("disable-blink-features", "AutomationControlled")
		if r.cfg.BrowserBin != "" {
			lch = lch.Bin(r.cfg.BrowserBin)
		}
		ws, err = lch.Launch()
		if err != nil {
			// Cleanup would block when the process never started.
			lch.Kill()
			return nil, eris.Wrap(err, "render: launch browser")
		}
	}

	connCtx, disconnect := context.WithCancel(context.Background())
	b := rod.New().ControlURL(ws).Context(connCtx)
	if err := b.Connect(); err != nil {
		disconnect()
		if lch != nil {
			lch.Kill()
			lch.Cleanup()
		}
		return nil, eris.Wrap(err, "render: connect browser")
	}

	if lch == nil {
		// Shared remote Chrome: isolate cookies and storage, never close the browser itself.
		inc, err := b.Incognito()
		if err != nil {
			disconnect()
			return nil, eris.Wrap(err, "render: incognito context")
		}
		return &session{target: inc, close: func() {
			_ = inc.Close()
			disconnect()
		}}, nil
	}

	return &session{target: b, close: func() {
		if err := b.Close(); err != nil {
			zap.L().Debug("render: close browser", zap.Error(err))
		}
		disconnect()
		lch.Cleanup()
	}}, nil
}
