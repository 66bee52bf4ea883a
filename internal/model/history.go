package model

import "time"

// HistoryKind identifies which analysis produced a history entry.
type HistoryKind string

const (
	HistoryKindURL   HistoryKind = "url"
	HistoryKindText  HistoryKind = "text"
	HistoryKindImage HistoryKind = "image"
)

// HistoryEntry is one row of the most-recent-N analysis history.
type HistoryEntry struct {
	ID        string         `json:"id"`
	Kind      HistoryKind    `json:"kind"`
	Source    string         `json:"source"` // URL, file name, or a text excerpt
	Title     string         `json:"title,omitempty"`
	Text      *TextAnalysis  `json:"text_analysis,omitempty"`
	Image     *ImageAnalysis `json:"image_analysis,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DesignScore returns the score of whichever analysis the entry holds.
func (e HistoryEntry) DesignScore() int {
	switch {
	case e.Text != nil:
		return e.Text.DesignScore
	case e.Image != nil:
		return e.Image.DesignScore
	default:
		return DefaultDesignScore
	}
}

// Summary returns a one-line description of the entry's analysis.
func (e HistoryEntry) Summary() string {
	switch {
	case e.Text != nil:
		return e.Text.Summary
	case e.Image != nil:
		return e.Image.Description
	default:
		return ""
	}
}
