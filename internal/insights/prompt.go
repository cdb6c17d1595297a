package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpattn/policy-api/internal/domain"
)

// buildPrompt renders the analyst prompt from the aggregate summary
// and any filters the caller applied.
func buildPrompt(summary domain.PolicySummary, filter domain.PolicyFilter) string {
	summaryJSON, _ := json.MarshalIndent(summary, "", "  ")

	var filters []string
	if filter.Search != "" {
		filters = append(filters, fmt.Sprintf("search=%q", filter.Search))
	}
	if filter.Status != "" {
		filters = append(filters, fmt.Sprintf("status=%q", filter.Status))
	}
	if filter.PolicyType != "" {
		filters = append(filters, fmt.Sprintf("policy_type=%q", filter.PolicyType))
	}
	filterLine := ""
	if len(filters) > 0 {
		filterLine = fmt.Sprintf("\nApplied filters: %s.", strings.Join(filters, ", "))
	}

	return fmt.Sprintf(`Act as an insurance risk analyst. Based on this portfolio summary:

%s%s

Produce an analysis as valid JSON (no markdown, no fences) with two fields:

1) "insights": an array of 5 to 10 short lines describing risks and
   anomalies (high rejection volume, insured values near the minimum,
   concentration by policy type, high share of expired or cancelled
   policies). Include numbers and percentages where relevant.

2) "recommendations": an array of exactly 2 or 3 actionable
   recommendations (review thresholds, request more data, set up
   alerts, diversify the portfolio, manual review when the insured
   value is below 1.1x the minimum).

Response format (this JSON only, nothing else):

{
  "insights": ["..."],
  "recommendations": ["..."]
}

IMPORTANT: return exactly 2 or 3 recommendations. Be specific,
quantified and practical using the summary data.`, summaryJSON, filterLine)
}
