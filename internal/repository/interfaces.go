package repository

import (
	"context"

	"github.com/rpattn/policy-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool the repositories use. Declared as
// an interface so tests can substitute a pgxmock pool.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PolicyRepository defines the interface for policy persistence
type PolicyRepository interface {
	// InsertMany persists candidates in one all-or-nothing transaction.
	// A uniqueness conflict rolls back the whole batch and surfaces as
	// ErrDuplicatePolicy.
	InsertMany(ctx context.Context, candidates []domain.PolicyCandidate) error
	// FindExisting returns the subset of the given policy numbers that
	// are already persisted. Empty input returns an empty set without a
	// round trip.
	FindExisting(ctx context.Context, policyNumbers []string) (map[string]struct{}, error)
	List(ctx context.Context, filter domain.PolicyFilter, limit, offset int) (domain.PolicyPage, error)
	Summary(ctx context.Context) (domain.PolicySummary, error)
}

// OperationRepository defines the interface for the operation ledger
type OperationRepository interface {
	Create(ctx context.Context, op domain.Operation) error
	UpdateMetrics(ctx context.Context, id uuid.UUID, metrics domain.OperationMetrics) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Operation, error)
}
