package analysis

import (
	"encoding/json"
	"regexp"

	"go.uber.org/zap"
)

var (
	fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	objectSpan  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// RecoverJSON pulls a JSON object out of free-form model output. A fenced
// block narrows the candidate first, then the span from the first '{' to
// the last '}' is parsed strictly. Anything unparseable yields an empty,
// non-nil map.
func RecoverJSON(raw string) map[string]any {
	candidate := raw
	if m := fencedBlock.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	}
	if span := objectSpan.FindString(candidate); span != "" {
		candidate = span
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		zap.L().Warn("analysis: unparseable model output",
			zap.Error(err),
			zap.String("head", truncateRunes(candidate, 200)),
		)
		return map[string]any{}
	}
	if out == nil {
		return map[string]any{}
	}
	return out
}
