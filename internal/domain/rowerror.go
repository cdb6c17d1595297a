package domain

// Stable machine-readable rejection codes reported per row.
const (
	CodePolicyNumberRequired  = "POLICY_NUMBER_REQUIRED"
	CodeInvalidDateRange      = "INVALID_DATE_RANGE"
	CodeInvalidStatus         = "INVALID_STATUS"
	CodeInvalidNumber         = "INVALID_NUMBER"
	CodeDuplicatePolicyNumber = "DUPLICATE_POLICY_NUMBER"
	CodePropertyValueTooLow   = "PROPERTY_VALUE_TOO_LOW"
	CodeAutoValueTooLow       = "AUTO_VALUE_TOO_LOW"
)

// RuleViolation is one technical defect or business rule failure.
// Field names the offending attribute, comma-joined when several are
// involved. Violations are reported, never persisted.
type RuleViolation struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RowError ties a violation back to the 1-based position of the row in
// the uploaded batch. This is the unit of reporting to the caller.
type RowError struct {
	RowNumber int    `json:"row_number"`
	Code      string `json:"code"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// NewRowError attaches a row number to a violation.
func NewRowError(rowNumber int, v RuleViolation) RowError {
	return RowError{
		RowNumber: rowNumber,
		Code:      v.Code,
		Field:     v.Field,
		Message:   v.Message,
	}
}
