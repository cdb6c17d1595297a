package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/policy-api/internal/domain"
	"github.com/rpattn/policy-api/internal/repository"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// sampleSize bounds the per-policy sample fed into the risk analysis.
const sampleSize = 100

// Report is the full insights payload: the briefing plus portfolio
// highlights.
type Report struct {
	Insights        []string   `json:"insights"`
	Recommendations []string   `json:"recommendations"`
	Highlights      Highlights `json:"highlights"`
}

// Highlights carries the headline numbers next to the briefing text.
type Highlights struct {
	TotalPolicies int `json:"total_policies"`
	RiskFlags     int `json:"risk_flags"`
}

// Service generates portfolio risk briefings. A nil client means no
// provider was configured and every briefing uses the deterministic
// fallback.
type Service struct {
	policyRepo repository.PolicyRepository
	client     ModelClient
	logger     *zap.Logger
}

func NewService(policyRepo repository.PolicyRepository, client ModelClient, logger *zap.Logger) *Service {
	return &Service{policyRepo: policyRepo, client: client, logger: logger}
}

// Generate builds the briefing for the current portfolio, narrowed by
// the optional filter. Model failures degrade to the deterministic
// fallback instead of failing the request.
func (s *Service) Generate(ctx context.Context, filter domain.PolicyFilter) (Report, error) {
	summary, err := s.policyRepo.Summary(ctx)
	if err != nil {
		return Report{}, eris.Wrap(err, "insights: load summary")
	}

	page, err := s.policyRepo.List(ctx, filter, sampleSize, 0)
	if err != nil {
		return Report{}, eris.Wrap(err, "insights: load policy sample")
	}

	analysis := AnalyzeRisks(summary, page.Items)
	briefing := s.generateBriefing(ctx, summary, filter, analysis)

	return Report{
		Insights:        briefing.Insights,
		Recommendations: briefing.Recommendations,
		Highlights: Highlights{
			TotalPolicies: summary.TotalPolicies,
			RiskFlags:     len(analysis.RiskFlags),
		},
	}, nil
}

func (s *Service) generateBriefing(ctx context.Context, summary domain.PolicySummary, filter domain.PolicyFilter, analysis RiskAnalysis) Briefing {
	if s.client == nil {
		return fallbackBriefing(analysis)
	}

	text, err := s.client.GenerateText(ctx, buildPrompt(summary, filter))
	if err != nil {
		s.logger.Warn("model call failed, using fallback briefing", zap.Error(err))
		return fallbackBriefing(analysis)
	}

	briefing, err := parseModelJSON(text)
	if err != nil {
		s.logger.Warn("unparseable model response, using fallback briefing", zap.Error(err))
		return fallbackBriefing(analysis)
	}
	return briefing
}

// fallbackBriefing derives the briefing directly from the risk
// analysis when no model is available.
func fallbackBriefing(analysis RiskAnalysis) Briefing {
	var insights, recommendations []string

	if analysis.TotalPolicies == 0 {
		return Briefing{
			Insights: []string{"No policies registered yet."},
			Recommendations: []string{
				"Load policies through the upload endpoint.",
				"Review validation thresholds and rules once data exists.",
			},
		}
	}

	if len(analysis.ConcentrationRisk) > 0 {
		insights = append(insights, fmt.Sprintf(
			"High concentration detected: %s. This can raise exposure risk.",
			strings.Join(analysis.ConcentrationRisk, ", ")))
		recommendations = append(recommendations,
			"Diversify the portfolio to reduce concentration risk.")
	}

	if analysis.PoliciesNearMinimum > 0 {
		pct := float64(analysis.PoliciesNearMinimum) / float64(analysis.TotalPolicies) * 100
		insights = append(insights, fmt.Sprintf(
			"%.1f%% of policies carry insured values near the allowed minimum.", pct))
		recommendations = append(recommendations,
			"Set up alerts for manual review when the insured value is below 1.1x the minimum.")
	}

	expired := analysis.StatusCounts[string(domain.PolicyStatusExpired)]
	cancelled := analysis.StatusCounts[string(domain.PolicyStatusCancelled)]
	if float64(expired+cancelled) > float64(analysis.TotalPolicies)*expiredCancelledPct/100 {
		pct := float64(expired+cancelled) / float64(analysis.TotalPolicies) * 100
		insights = append(insights, fmt.Sprintf(
			"%.1f%% of policies are expired or cancelled.", pct))
		recommendations = append(recommendations,
			"Review customer retention strategies for active policies.")
	}

	if len(insights) == 0 {
		insights = append(insights,
			fmt.Sprintf("Portfolio of %d policies with a total premium of $%.2f.",
				analysis.TotalPolicies, analysis.TotalPremiumUSD),
			"Risk distribution looks balanced.")
		recommendations = append(recommendations,
			"Keep monitoring the key portfolio metrics regularly.")
	}

	return Briefing{
		Insights:        insights,
		Recommendations: clampRecommendations(recommendations),
	}
}
