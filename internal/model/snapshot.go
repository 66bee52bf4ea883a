package model

import "time"

// FailureKind classifies a soft render failure.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureInvalidURL  FailureKind = "invalid_url"
	FailureTimeout     FailureKind = "timeout"
	FailureNavigation  FailureKind = "navigation"
	FailureBlocked     FailureKind = "blocked"
	FailureUnavailable FailureKind = "unavailable" // no browser could be started or reached
)

// PageSnapshot is the result of one render attempt. A renderer builds it
// once; nothing mutates it afterwards.
type PageSnapshot struct {
	URL            string      `json:"url"`
	Title          *string     `json:"title,omitempty"`
	H1             *string     `json:"h1,omitempty"`
	FirstParagraph *string     `json:"first_paragraph,omitempty"`
	Screenshot     []byte      `json:"screenshot,omitempty"`
	Error          string      `json:"error,omitempty"`
	Failure        FailureKind `json:"failure,omitempty"`
	Engine         string      `json:"engine,omitempty"`
	RenderedAt     time.Time   `json:"rendered_at"`

	// HTML is the rendered DOM handed to the extractor. Not serialized.
	HTML string `json:"-"`
}

// FailedSnapshot builds a snapshot for a render that produced no content.
func FailedSnapshot(url, engine string, kind FailureKind, msg string) *PageSnapshot {
	return &PageSnapshot{
		URL:        url,
		Error:      msg,
		Failure:    kind,
		Engine:     engine,
		RenderedAt: time.Now().UTC(),
	}
}

// Failed reports whether the render attempt failed.
func (s *PageSnapshot) Failed() bool {
	return s == nil || s.Error != ""
}

// HasScreenshot reports whether a screenshot was captured.
func (s *PageSnapshot) HasScreenshot() bool {
	return s != nil && len(s.Screenshot) > 0
}

// Deref returns the value of an optional string, or "" when absent.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
