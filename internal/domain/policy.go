package domain

import (
	"strings"
	"time"
)

// PolicyStatus is the closed lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "active"
	PolicyStatusExpired   PolicyStatus = "expired"
	PolicyStatusCancelled PolicyStatus = "cancelled"
)

// ParsePolicyStatus normalizes a raw status value. The second return
// value is false when the value is not one of the known statuses.
func ParsePolicyStatus(raw string) (PolicyStatus, bool) {
	switch PolicyStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyStatusActive:
		return PolicyStatusActive, true
	case PolicyStatusExpired:
		return PolicyStatusExpired, true
	case PolicyStatusCancelled:
		return PolicyStatusCancelled, true
	default:
		return "", false
	}
}

// Policy types with business rules attached. The set is open; other
// values pass through validation untouched.
const (
	PolicyTypeProperty = "Property"
	PolicyTypeAuto     = "Auto"
)

// PolicyCandidate is a fully typed row that passed technical
// normalization and is pending business rule validation.
type PolicyCandidate struct {
	PolicyNumber    string       `json:"policy_number"`
	Customer        string       `json:"customer"`
	PolicyType      string       `json:"policy_type"`
	StartDate       time.Time    `json:"start_date"`
	EndDate         time.Time    `json:"end_date"`
	PremiumUSD      float64      `json:"premium_usd"`
	Status          PolicyStatus `json:"status"`
	InsuredValueUSD float64      `json:"insured_value_usd"`
}

// Policy is the persisted record. Immutable after insert; policy_number
// is the primary key.
type Policy struct {
	PolicyCandidate
	CreatedAt time.Time `json:"created_at"`
}

// PolicyFilter narrows list queries. Zero values mean "no filter".
type PolicyFilter struct {
	Search     string
	Status     string
	PolicyType string
}

// PolicyPage is one page of a filtered policy listing.
type PolicyPage struct {
	Items []Policy `json:"items"`
	Total int      `json:"total"`
}

// PolicySummary aggregates the persisted portfolio.
type PolicySummary struct {
	TotalPolicies   int                `json:"total_policies"`
	TotalPremiumUSD float64            `json:"total_premium_usd"`
	CountByStatus   map[string]int     `json:"count_by_status"`
	CountByType     map[string]int     `json:"count_by_type"`
	PremiumByType   map[string]float64 `json:"premium_by_type"`
}
