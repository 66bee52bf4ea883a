package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/competitor-monitor/internal/model"
)

const maxBodyBytes = 10 << 20

// HTTPRenderer fetches the static HTML with a plain GET. It has no
// JavaScript and produces no screenshot, so it serves as the fallback when
// no browser is available.
type HTTPRenderer struct {
	cfg    Config
	client *http.Client
}

// NewHTTPRenderer builds an HTTPRenderer.
func NewHTTPRenderer(cfg Config) *HTTPRenderer {
	cfg = cfg.withDefaults()
	return &HTTPRenderer{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// Name implements Renderer.
func (h *HTTPRenderer) Name() string { return EngineHTTP }

// Render implements Renderer.
func (h *HTTPRenderer) Render(ctx context.Context, rawURL string) *model.PageSnapshot {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineHTTP, model.FailureInvalidURL, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineHTTP, model.FailureInvalidURL, err.Error())
	}
	req.Header.Set("User-Agent", h.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineHTTP, failureFor(ctx, err), "render: fetch: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.FailedSnapshot(rawURL, EngineHTTP, failureFor(ctx, err), "render: read body: "+err.Error())
	}
	doc := decodeHTML(body, resp.Header.Get("Content-Type"))

	if block := DetectBlock(resp.StatusCode, resp.Header, doc); block != BlockNone {
		return model.FailedSnapshot(rawURL, EngineHTTP, model.FailureBlocked, fmt.Sprintf("render: blocked (%s)", block))
	}
	if resp.StatusCode >= 400 {
		return model.FailedSnapshot(rawURL, EngineHTTP, model.FailureNavigation, fmt.Sprintf("render: status %d", resp.StatusCode))
	}

	zap.L().Debug("render: fetched static page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return snapshot(rawURL, EngineHTTP, doc, nil)
}

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([a-z0-9_\-:]+)`)

// decodeHTML converts body to UTF-8 using the Content-Type charset, then a
// <meta charset> in the first KiB. Unknown labels leave the bytes as is.
func decodeHTML(body []byte, contentType string) string {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		m := metaCharset.FindSubmatch(body[:min(len(body), 1024)])
		if m != nil {
			label = string(m[1])
		}
	}
	if label == "" {
		return string(body)
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return string(body)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return string(body)
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return string(body)
	}
	return string(out)
}
