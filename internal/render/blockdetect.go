package render

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockType names the anti-bot wall a page hit.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// shellSize is the body size under which a noscript/refresh page counts as
// an empty JavaScript shell.
const shellSize = 2000

// interstitialText is the visible-text size (in runes) under which a page
// carrying challenge or captcha markers is treated as a wall. Content pages
// routinely embed captcha widgets and bot-management scripts.
const interstitialText = 600

// DetectBlock inspects a response for bot-protection walls. status and
// header are optional: the browser engine only has the rendered DOM.
func DetectBlock(status int, header http.Header, body string) BlockType {
	if (status == http.StatusForbidden || status == http.StatusServiceUnavailable) && header != nil {
		if header.Get("cf-ray") != "" || strings.EqualFold(header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(body)
	if visibleTextLen(body) < interstitialText {
		switch {
		case strings.Contains(lower, "checking your browser"),
			strings.Contains(lower, "cf-browser-verification"),
			strings.Contains(lower, "challenge-platform"),
			strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
			return BlockCloudflare
		case strings.Contains(lower, "captcha"):
			return BlockCaptcha
		}
	}

	if len(body) < shellSize {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return BlockJSShell
		}
	}
	return BlockNone
}

// visibleTextLen counts the runes of text a reader would see, whitespace
// collapsed. It stops counting once the interstitial threshold is reached.
func visibleTextLen(body string) int {
	z := html.NewTokenizer(strings.NewReader(body))
	hidden := 0
	n := 0
	for n < interstitialText {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			if isHidden(z) {
				hidden++
			}
		case html.EndTagToken:
			if isHidden(z) && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if hidden == 0 {
				for _, w := range strings.Fields(string(z.Text())) {
					n += utf8.RuneCountInString(w) + 1
				}
			}
		}
	}
	return n
}

func isHidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}
