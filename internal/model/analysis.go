package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultDesignScore is used when the model omits or garbles design_score.
	DefaultDesignScore = 5
	minDesignScore     = 0
	maxDesignScore     = 10
)

// TextAnalysis is the structured critique of a competitor's copy or page.
type TextAnalysis struct {
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	UniqueOffers       []string `json:"unique_offers"`
	Recommendations    []string `json:"recommendations"`
	Summary            string   `json:"summary"`
	DesignScore        int      `json:"design_score"`
	AnimationPotential string   `json:"animation_potential"`
}

// ImageAnalysis is the structured critique of a banner or screenshot.
type ImageAnalysis struct {
	Description         string   `json:"description"`
	MarketingInsights   []string `json:"marketing_insights"`
	DesignScore         int      `json:"design_score"`
	VisualStyleAnalysis string   `json:"visual_style_analysis"`
	Recommendations     []string `json:"recommendations"`
	AnimationPotential  string   `json:"animation_potential"`
}

// NewTextAnalysis returns a TextAnalysis holding every documented default.
func NewTextAnalysis() *TextAnalysis {
	return &TextAnalysis{
		Strengths:       []string{},
		Weaknesses:      []string{},
		UniqueOffers:    []string{},
		Recommendations: []string{},
		DesignScore:     DefaultDesignScore,
	}
}

// NewImageAnalysis returns an ImageAnalysis holding every documented default.
func NewImageAnalysis() *ImageAnalysis {
	return &ImageAnalysis{
		MarketingInsights: []string{},
		Recommendations:   []string{},
		DesignScore:       DefaultDesignScore,
	}
}

// TextAnalysisFromMap builds a TextAnalysis from a recovered JSON object.
// Missing or mistyped keys resolve to defaults; it never fails.
func TextAnalysisFromMap(m map[string]any) *TextAnalysis {
	return &TextAnalysis{
		Strengths:          stringList(m["strengths"]),
		Weaknesses:         stringList(m["weaknesses"]),
		UniqueOffers:       stringList(m["unique_offers"]),
		Recommendations:    stringList(m["recommendations"]),
		Summary:            stringValue(m["summary"]),
		DesignScore:        designScore(m["design_score"]),
		AnimationPotential: stringValue(m["animation_potential"]),
	}
}

// ImageAnalysisFromMap builds an ImageAnalysis from a recovered JSON object.
// Missing or mistyped keys resolve to defaults; it never fails.
func ImageAnalysisFromMap(m map[string]any) *ImageAnalysis {
	return &ImageAnalysis{
		Description:         stringValue(m["description"]),
		MarketingInsights:   stringList(m["marketing_insights"]),
		DesignScore:         designScore(m["design_score"]),
		VisualStyleAnalysis: stringValue(m["visual_style_analysis"]),
		Recommendations:     stringList(m["recommendations"]),
		AnimationPotential:  stringValue(m["animation_potential"]),
	}
}

// IsEmpty reports whether the analysis carries no model-provided content.
func (a *TextAnalysis) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Summary == "" && a.AnimationPotential == "" &&
		len(a.Strengths) == 0 && len(a.Weaknesses) == 0 &&
		len(a.UniqueOffers) == 0 && len(a.Recommendations) == 0
}

// stringList converts a JSON value into a list of non-blank strings. A bare
// string becomes a one-item list.
func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return stringify(t)
	default:
		return ""
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// designScore reads a 0-10 score. Numbers and numeric strings ("8", "8/10")
// are accepted and clamped into range; anything else yields the default.
func designScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return DefaultDesignScore
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if i := strings.Index(s, "/"); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DefaultDesignScore
		}
		f = n
	default:
		return DefaultDesignScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultDesignScore
	}
	// Clamp before converting: int() of a huge float is undefined.
	f = math.Max(minDesignScore, math.Min(maxDesignScore, f))
	return int(math.Round(f))
}
