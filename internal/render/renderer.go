// Package render turns a competitor URL into a PageSnapshot: rendered DOM,
// headline fields and a viewport screenshot. Failures never surface as Go
// errors; they are recorded on the snapshot.
package render

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-monitor/internal/extract"
	"github.com/sells-group/competitor-monitor/internal/model"
)

// Engine names.
const (
	EngineRod  = "rod"
	EngineHTTP = "http"
	EngineAuto = "auto"
)

// DefaultUserAgent mimics desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Renderer produces one snapshot per call. Implementations must be safe for
// concurrent use.
type Renderer interface {
	Render(ctx context.Context, url string) *model.PageSnapshot
	Name() string
}

// Config holds renderer settings shared by every engine.
type Config struct {
	Engine    string
	Timeout   time.Duration // whole-render budget; the caller's deadline still wins if tighter
	Settle    time.Duration // extra wait for network idle after load
	UserAgent string

	// Browser settings.
	RemoteURL      string // ws:// or host:port of an existing Chrome; empty launches one
	BrowserBin     string
	NoSandbox      bool
	ViewportWidth  int
	ViewportHeight int
	JPEGQuality    int
	MaxConcurrent  int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	return c
}

// New builds the renderer selected by cfg.Engine.
func New(cfg Config) (Renderer, error) {
	switch strings.ToLower(cfg.Engine) {
	case EngineRod:
		return NewRodRenderer(cfg), nil
	case EngineHTTP:
		return NewHTTPRenderer(cfg), nil
	case EngineAuto, "":
		return NewChain(NewRodRenderer(cfg), NewHTTPRenderer(cfg)), nil
	default:
		return nil, eris.Errorf("render: unknown engine %q", cfg.Engine)
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, eris.Wrap(err, "render: parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("render: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, eris.New("render: url has no host")
	}
	return u, nil
}

// snapshot assembles a successful snapshot from the rendered document.
func snapshot(rawURL, engine, doc string, screenshot []byte) *model.PageSnapshot {
	f := extract.Extract(doc)
	return &model.PageSnapshot{
		URL:            rawURL,
		Title:          f.Title,
		H1:             f.H1,
		FirstParagraph: f.FirstParagraph,
		Screenshot:     screenshot,
		Engine:         engine,
		RenderedAt:     time.Now().UTC(),
		HTML:           doc,
	}
}

// failureFor maps an error seen while the render context was live.
func failureFor(ctx context.Context, err error) model.FailureKind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.FailureTimeout
	}
	return model.FailureNavigation
}
