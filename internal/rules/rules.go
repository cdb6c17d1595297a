// Package rules holds the business rule engine applied to technically
// valid policy candidates. Rules are independent value types behind a
// common interface; the Validator owns an ordered list of them and
// never knows the concrete rules it runs.
package rules

import (
	"fmt"

	"github.com/rpattn/policy-api/internal/domain"
)

// Rule evaluates one candidate and returns zero or more violations.
// A rule that does not apply to the candidate returns an empty slice.
type Rule interface {
	Name() string
	Evaluate(candidate domain.PolicyCandidate) []domain.RuleViolation
}

// Minimum insured values enforced per policy type.
const (
	PropertyMinInsuredValueUSD = 5000
	AutoMinInsuredValueUSD     = 10000
)

// PropertyMinInsuredValue rejects Property policies insured below the
// minimum.
type PropertyMinInsuredValue struct{}

func (PropertyMinInsuredValue) Name() string { return "PropertyMinInsuredValue" }

func (PropertyMinInsuredValue) Evaluate(candidate domain.PolicyCandidate) []domain.RuleViolation {
	if candidate.PolicyType != domain.PolicyTypeProperty {
		return nil
	}
	if candidate.InsuredValueUSD >= PropertyMinInsuredValueUSD {
		return nil
	}
	return []domain.RuleViolation{{
		Code:    domain.CodePropertyValueTooLow,
		Field:   "insured_value_usd",
		Message: fmt.Sprintf("Property policies require insured_value_usd >= %d. Got %v.", PropertyMinInsuredValueUSD, candidate.InsuredValueUSD),
	}}
}

// AutoMinInsuredValue rejects Auto policies insured below the minimum.
type AutoMinInsuredValue struct{}

func (AutoMinInsuredValue) Name() string { return "AutoMinInsuredValue" }

func (AutoMinInsuredValue) Evaluate(candidate domain.PolicyCandidate) []domain.RuleViolation {
	if candidate.PolicyType != domain.PolicyTypeAuto {
		return nil
	}
	if candidate.InsuredValueUSD >= AutoMinInsuredValueUSD {
		return nil
	}
	return []domain.RuleViolation{{
		Code:    domain.CodeAutoValueTooLow,
		Field:   "insured_value_usd",
		Message: fmt.Sprintf("Auto policies require insured_value_usd >= %d. Got %v.", AutoMinInsuredValueUSD, candidate.InsuredValueUSD),
	}}
}

// Validator runs every rule in order and concatenates all violations.
// There is no short-circuit; one candidate can fail several rules.
type Validator struct {
	rules []Rule
}

// NewValidator builds a validator over an ordered rule list.
func NewValidator(ruleSet ...Rule) *Validator {
	return &Validator{rules: ruleSet}
}

// NewDefaultValidator wires the required rule set.
func NewDefaultValidator() *Validator {
	return NewValidator(
		PropertyMinInsuredValue{},
		AutoMinInsuredValue{},
	)
}

// Validate evaluates all rules against the candidate.
func (v *Validator) Validate(candidate domain.PolicyCandidate) []domain.RuleViolation {
	var violations []domain.RuleViolation
	for _, rule := range v.rules {
		violations = append(violations, rule.Evaluate(candidate)...)
	}
	return violations
}
