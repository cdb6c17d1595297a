package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/policy-api/internal/domain"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// parseDate accepts any of the supported calendar date layouts.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseAmount interprets a raw cell as a finite decimal amount. A blank
// cell counts as zero; anything else must parse to a finite number.
func parseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// normalizeRow turns one raw record into a typed candidate or a
// non-empty list of technical defects. Defects are collected in rule
// order rather than short-circuited, except the numeric check which is
// suppressed when the row already has a defect.
func normalizeRow(raw map[string]string, rowNumber int) (domain.PolicyCandidate, []domain.RowError) {
	var rowErrors []domain.RowError

	policyNumber := strings.TrimSpace(raw["policy_number"])
	if policyNumber == "" {
		rowErrors = append(rowErrors, domain.NewRowError(rowNumber, domain.RuleViolation{
			Code:    domain.CodePolicyNumberRequired,
			Field:   "policy_number",
			Message: "policy_number is required",
		}))
	}

	var startDate, endDate time.Time
	startRaw := strings.TrimSpace(raw["start_date"])
	endRaw := strings.TrimSpace(raw["end_date"])
	if startRaw != "" && endRaw != "" {
		start, startOK := parseDate(startRaw)
		end, endOK := parseDate(endRaw)
		if !startOK || !endOK || !start.Before(end) {
			rowErrors = append(rowErrors, domain.NewRowError(rowNumber, domain.RuleViolation{
				Code:    domain.CodeInvalidDateRange,
				Field:   "start_date,end_date",
				Message: "start_date must be a valid date strictly before end_date",
			}))
		} else {
			startDate, endDate = start, end
		}
	} else {
		// A single date is allowed; keep it when parseable.
		if startRaw != "" {
			startDate, _ = parseDate(startRaw)
		}
		if endRaw != "" {
			endDate, _ = parseDate(endRaw)
		}
	}

	status, statusOK := domain.ParsePolicyStatus(raw["status"])
	if !statusOK {
		rowErrors = append(rowErrors, domain.NewRowError(rowNumber, domain.RuleViolation{
			Code:    domain.CodeInvalidStatus,
			Field:   "status",
			Message: "status must be one of: active, expired, cancelled",
		}))
	}

	premium, premiumOK := parseAmount(raw["premium_usd"])
	insured, insuredOK := parseAmount(raw["insured_value_usd"])
	if !premiumOK || !insuredOK {
		// Reported only when the row has no earlier defect, to avoid
		// double-reporting a single bad row.
		if len(rowErrors) == 0 {
			rowErrors = append(rowErrors, domain.NewRowError(rowNumber, domain.RuleViolation{
				Code:    domain.CodeInvalidNumber,
				Field:   "premium_usd|insured_value_usd",
				Message: "premium_usd and insured_value_usd must be finite numbers",
			}))
		}
	}

	if len(rowErrors) > 0 {
		return domain.PolicyCandidate{}, rowErrors
	}

	return domain.PolicyCandidate{
		PolicyNumber:    policyNumber,
		Customer:        strings.TrimSpace(raw["customer"]),
		PolicyType:      strings.TrimSpace(raw["policy_type"]),
		StartDate:       startDate,
		EndDate:         endDate,
		PremiumUSD:      premium,
		Status:          status,
		InsuredValueUSD: insured,
	}, nil
}
