package insights

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Briefing is the generated risk analysis returned to callers.
type Briefing struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

var codeFencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

var defaultRecommendations = []string{
	"Review insured value and premium thresholds on a regular schedule.",
	"Set up alerts when portfolio indicators approach the defined limits.",
	"Request additional data or a manual review for detected anomalies.",
}

// parseModelJSON extracts the briefing from a model response. Models
// are asked for bare JSON but fenced or prose-wrapped answers are
// tolerated: the first fenced block wins, otherwise the outermost
// object is carved out of the text.
func parseModelJSON(text string) (Briefing, error) {
	raw := strings.TrimSpace(text)
	if match := codeFencePattern.FindStringSubmatch(raw); match != nil {
		raw = strings.TrimSpace(match[1])
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var briefing Briefing
	if err := json.Unmarshal([]byte(raw), &briefing); err != nil {
		return Briefing{}, eris.Wrap(err, "insights: parse model response")
	}

	if briefing.Insights == nil {
		briefing.Insights = []string{}
	}
	briefing.Recommendations = clampRecommendations(briefing.Recommendations)
	return briefing, nil
}

// clampRecommendations enforces the 2-3 recommendation contract,
// padding short lists with generic entries.
func clampRecommendations(recommendations []string) []string {
	if len(recommendations) < 2 {
		needed := 2 - len(recommendations)
		recommendations = append(recommendations, defaultRecommendations[:needed]...)
	}
	if len(recommendations) > 3 {
		recommendations = recommendations[:3]
	}
	return recommendations
}
