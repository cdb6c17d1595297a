package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/policy-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrOperationNotFound reports a ledger lookup for an unknown id.
var ErrOperationNotFound = errors.New("operation not found")

type operationRepository struct {
	pool Pool
}

// NewOperationRepository wires the ledger repository backed by pgxpool.
func NewOperationRepository(pool Pool) OperationRepository {
	return &operationRepository{pool: pool}
}

func (r *operationRepository) Create(ctx context.Context, op domain.Operation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operations (id, endpoint, status, correlation_id)
		 VALUES ($1, $2, $3, $4)`,
		op.ID,
		op.Endpoint,
		string(op.Status),
		op.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation record: %w", err)
	}
	return nil
}

func (r *operationRepository) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics domain.OperationMetrics) error {
	var errorSummary any
	if metrics.ErrorSummary != "" {
		errorSummary = metrics.ErrorSummary
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE operations
		 SET status = $1, rows_inserted = $2, rows_rejected = $3, duration_ms = $4, error_summary = $5
		 WHERE id = $6`,
		string(metrics.Status),
		metrics.RowsInserted,
		metrics.RowsRejected,
		metrics.DurationMS,
		errorSummary,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation metrics: %w", err)
	}
	return nil
}

func (r *operationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Operation, error) {
	var (
		op           domain.Operation
		status       string
		rowsInserted pgtype.Int4
		rowsRejected pgtype.Int4
		durationMS   pgtype.Int8
		errorSummary pgtype.Text
		createdAt    pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, endpoint, status, correlation_id, rows_inserted, rows_rejected, duration_ms, error_summary, created_at
		 FROM operations WHERE id = $1`,
		id,
	).Scan(
		&op.ID,
		&op.Endpoint,
		&status,
		&op.CorrelationID,
		&rowsInserted,
		&rowsRejected,
		&durationMS,
		&errorSummary,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Operation{}, fmt.Errorf("operation %s: %w", id, ErrOperationNotFound)
		}
		return domain.Operation{}, fmt.Errorf("failed to get operation %s: %w", id, err)
	}

	op.Status = domain.OperationStatus(status)
	if rowsInserted.Valid {
		value := int(rowsInserted.Int32)
		op.RowsInserted = &value
	}
	if rowsRejected.Valid {
		value := int(rowsRejected.Int32)
		op.RowsRejected = &value
	}
	if durationMS.Valid {
		value := durationMS.Int64
		op.DurationMS = &value
	}
	if errorSummary.Valid {
		value := errorSummary.String
		op.ErrorSummary = &value
	}
	if createdAt.Valid {
		op.CreatedAt = createdAt.Time
	}

	return op, nil
}
