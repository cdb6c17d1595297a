// Package insights turns the persisted portfolio into a short risk
// briefing, either through a text-generation model or a deterministic
// fallback computed from the same analysis.
package insights

import (
	"fmt"
	"strings"

	"github.com/rpattn/policy-api/internal/domain"
)

// Risk flag identifiers attached by AnalyzeRisks.
const (
	FlagHighExpiredCancelled = "HIGH_EXPIRED_CANCELLED"
	FlagValuesNearMinimum    = "VALUES_NEAR_MINIMUM"
	FlagLowTypeDiversity     = "LOW_TYPE_DIVERSITY"
)

// Thresholds for the pre-model analysis. Near-minimum means an insured
// value within 1.1x of the per-type floor enforced at ingestion.
const (
	concentrationPct    = 60.0
	nearMinimumPct      = 20.0
	expiredCancelledPct = 30.0
	nearMinimumFactor   = 1.1
	propertyMinValueUSD = 5000
	autoMinValueUSD     = 10000
)

// RiskAnalysis is the deterministic pre-analysis computed before any
// model call. The fallback briefing is generated from the same values.
type RiskAnalysis struct {
	TotalPolicies          int
	TotalPremiumUSD        float64
	StatusCounts           map[string]int
	PremiumByType          map[string]float64
	RiskFlags              []string
	AverageInsuredValueUSD float64
	PoliciesNearMinimum    int
	ConcentrationRisk      []string
}

// AnalyzeRisks computes portfolio risk indicators from the aggregate
// summary plus a sample of persisted policies.
func AnalyzeRisks(summary domain.PolicySummary, policies []domain.Policy) RiskAnalysis {
	analysis := RiskAnalysis{
		TotalPolicies:   summary.TotalPolicies,
		TotalPremiumUSD: summary.TotalPremiumUSD,
		StatusCounts:    summary.CountByStatus,
		PremiumByType:   summary.PremiumByType,
	}

	if len(policies) > 0 && summary.TotalPolicies > 0 {
		typeCounts := make(map[string]int)
		var insuredTotal float64
		for _, policy := range policies {
			typeCounts[policy.PolicyType]++
			insuredTotal += policy.InsuredValueUSD

			switch policy.PolicyType {
			case domain.PolicyTypeProperty:
				if policy.InsuredValueUSD < propertyMinValueUSD*nearMinimumFactor {
					analysis.PoliciesNearMinimum++
				}
			case domain.PolicyTypeAuto:
				if policy.InsuredValueUSD < autoMinValueUSD*nearMinimumFactor {
					analysis.PoliciesNearMinimum++
				}
			}
		}
		analysis.AverageInsuredValueUSD = insuredTotal / float64(len(policies))

		for policyType, count := range typeCounts {
			pct := float64(count) / float64(summary.TotalPolicies) * 100
			if pct > concentrationPct {
				analysis.ConcentrationRisk = append(analysis.ConcentrationRisk,
					fmt.Sprintf("%s: %.1f%%", policyType, pct))
				analysis.RiskFlags = append(analysis.RiskFlags,
					"CONCENTRATION_"+strings.ToUpper(policyType))
			}
		}

		if analysis.PoliciesNearMinimum > 0 {
			pct := float64(analysis.PoliciesNearMinimum) / float64(summary.TotalPolicies) * 100
			if pct > nearMinimumPct {
				analysis.RiskFlags = append(analysis.RiskFlags, FlagValuesNearMinimum)
			}
		}
	}

	expired := summary.CountByStatus[string(domain.PolicyStatusExpired)]
	cancelled := summary.CountByStatus[string(domain.PolicyStatusCancelled)]
	if float64(expired+cancelled) > float64(summary.TotalPolicies)*expiredCancelledPct/100 {
		analysis.RiskFlags = append(analysis.RiskFlags, FlagHighExpiredCancelled)
	}

	if len(summary.PremiumByType) < 2 && summary.TotalPolicies > 10 {
		analysis.RiskFlags = append(analysis.RiskFlags, FlagLowTypeDiversity)
	}

	return analysis
}
