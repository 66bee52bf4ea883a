// Package report renders analysis results for people: plain-text reports
// for the terminal and an xlsx workbook for sharing.
package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
)

// FormatResult renders one competitor result.
func FormatResult(res *pipeline.Result) string {
	var b strings.Builder

	snap := res.Snapshot
	fmt.Fprintf(&b, "# Competitor: %s\n", snap.URL)
	fmt.Fprintf(&b, "Outcome: %s", res.Outcome)
	if snap.Engine != "" {
		fmt.Fprintf(&b, " (engine: %s)", snap.Engine)
	}
	b.WriteString("\n")

	if res.Outcome == pipeline.OutcomeRenderFailed {
		fmt.Fprintf(&b, "Render failed [%s]: %s\n", snap.Failure, snap.Error)
		return b.String()
	}

	b.WriteString("\n## Page\n")
	writeField(&b, "Title", snap.Title)
	writeField(&b, "H1", snap.H1)
	writeField(&b, "First paragraph", snap.FirstParagraph)
	fmt.Fprintf(&b, "- Screenshot: %s\n", yesNo(snap.HasScreenshot()))
	if res.Fallback {
		b.WriteString("- Note: vision model rejected the credentials; analysis is based on page text only\n")
	}
	b.WriteString("\n")

	if res.Error != "" {
		fmt.Fprintf(&b, "Analysis failed: %s\n", res.Error)
		return b.String()
	}
	b.WriteString(FormatTextAnalysis(res.Analysis))
	return b.String()
}

// FormatTextAnalysis renders a text or screenshot critique.
func FormatTextAnalysis(a *model.TextAnalysis) string {
	if a == nil {
		return "No analysis.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Analysis (design score %d/10)\n", a.DesignScore)
	if a.Summary != "" {
		fmt.Fprintf(&b, "%s\n", a.Summary)
	}
	writeList(&b, "Strengths", a.Strengths)
	writeList(&b, "Weaknesses", a.Weaknesses)
	writeList(&b, "Unique offers", a.UniqueOffers)
	writeList(&b, "Recommendations", a.Recommendations)
	if a.AnimationPotential != "" {
		fmt.Fprintf(&b, "\n### Animation potential\n%s\n", a.AnimationPotential)
	}
	return b.String()
}

// FormatImageAnalysis renders an image critique.
func FormatImageAnalysis(a *model.ImageAnalysis) string {
	if a == nil {
		return "No analysis.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Image analysis (design score %d/10)\n", a.DesignScore)
	if a.Description != "" {
		fmt.Fprintf(&b, "%s\n", a.Description)
	}
	writeList(&b, "Marketing insights", a.MarketingInsights)
	if a.VisualStyleAnalysis != "" {
		fmt.Fprintf(&b, "\n### Visual style\n%s\n", a.VisualStyleAnalysis)
	}
	writeList(&b, "Recommendations", a.Recommendations)
	if a.AnimationPotential != "" {
		fmt.Fprintf(&b, "\n### Animation potential\n%s\n", a.AnimationPotential)
	}
	return b.String()
}

// FormatHistory renders history entries as one line each, newest first.
func FormatHistory(entries []model.HistoryEntry) string {
	if len(entries) == 0 {
		return "History is empty.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %-5s  %2d/10  %s",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Kind, e.DesignScore(), e.Source)
		if e.Fallback {
			b.WriteString(" (text only)")
		}
		b.WriteString("\n")
		if s := e.Summary(); s != "" {
			fmt.Fprintf(&b, "    %s\n", s)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, label string, v *string) {
	if v == nil {
		fmt.Fprintf(b, "- %s: (none)\n", label)
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, *v)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
