package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperationStatus is the ledger lifecycle. Transitions are monotonic:
// RECEIVED -> PROCESSING -> COMPLETED | FAILED, no regression.
type OperationStatus string

const (
	OperationReceived   OperationStatus = "RECEIVED"
	OperationProcessing OperationStatus = "PROCESSING"
	OperationCompleted  OperationStatus = "COMPLETED"
	OperationFailed     OperationStatus = "FAILED"
)

// Operation is one tracked execution of the ingestion pipeline. The id
// doubles as the correlation anchor unless the caller supplied its own
// correlation id. Counts and duration are nil until the terminal update.
type Operation struct {
	ID            uuid.UUID       `json:"id"`
	Endpoint      string          `json:"endpoint"`
	Status        OperationStatus `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	RowsInserted  *int            `json:"rows_inserted"`
	RowsRejected  *int            `json:"rows_rejected"`
	DurationMS    *int64          `json:"duration_ms"`
	ErrorSummary  *string         `json:"error_summary"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewOperation creates a ledger record in PROCESSING state.
func NewOperation(id uuid.UUID, endpoint, correlationID string) Operation {
	return Operation{
		ID:            id,
		Endpoint:      endpoint,
		Status:        OperationProcessing,
		CorrelationID: correlationID,
	}
}

// OperationMetrics is the exactly-once terminal update applied at batch
// end.
type OperationMetrics struct {
	Status       OperationStatus
	RowsInserted int
	RowsRejected int
	DurationMS   int64
	ErrorSummary string
}
