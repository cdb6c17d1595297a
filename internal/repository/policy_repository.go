package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/policy-api/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrDuplicatePolicy reports a policy number uniqueness conflict raised
// by the database at insert time.
var ErrDuplicatePolicy = errors.New("duplicate policy number")

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type policyRepository struct {
	pool Pool
}

// NewPolicyRepository wires a repository backed by pgxpool.
func NewPolicyRepository(pool Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

const insertPolicySQL = `INSERT INTO policies (
	policy_number, customer, policy_type, start_date, end_date,
	premium_usd, status, insured_value_usd
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// InsertMany persists the batch inside a single transaction. Any error
// rolls back every row; a uniqueness conflict is reported as
// ErrDuplicatePolicy so callers can recover it as row rejections.
func (r *policyRepository) InsertMany(ctx context.Context, candidates []domain.PolicyCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, candidate := range candidates {
		_, err := tx.Exec(ctx, insertPolicySQL,
			candidate.PolicyNumber,
			candidate.Customer,
			candidate.PolicyType,
			dateOrNil(candidate.StartDate),
			dateOrNil(candidate.EndDate),
			candidate.PremiumUSD,
			string(candidate.Status),
			candidate.InsuredValueUSD,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("policy %s: %w", candidate.PolicyNumber, ErrDuplicatePolicy)
			}
			return fmt.Errorf("failed to insert policy %s: %w", candidate.PolicyNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert commit: %w", ErrDuplicatePolicy)
		}
		return fmt.Errorf("failed to commit insert transaction: %w", err)
	}

	return nil
}

func (r *policyRepository) FindExisting(ctx context.Context, policyNumbers []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(policyNumbers) == 0 {
		return existing, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT policy_number FROM policies WHERE policy_number = ANY($1)`,
		policyNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing policy numbers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("failed to scan policy number: %w", err)
		}
		existing[number] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate existing policy numbers: %w", err)
	}

	return existing, nil
}

func (r *policyRepository) List(ctx context.Context, filter domain.PolicyFilter, limit, offset int) (domain.PolicyPage, error) {
	page := domain.PolicyPage{Items: []domain.Policy{}}

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	conditions := filterConditions(filter)

	countQuery := psql.Select("COUNT(*)").From("policies")
	for _, cond := range conditions {
		countQuery = countQuery.Where(cond)
	}
	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return page, fmt.Errorf("failed to build count query: %w", err)
	}
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count policies: %w", err)
	}

	listQuery := psql.Select(
		"policy_number", "customer", "policy_type", "start_date", "end_date",
		"premium_usd", "status", "insured_value_usd", "created_at",
	).From("policies")
	for _, cond := range conditions {
		listQuery = listQuery.Where(cond)
	}
	listSQL, listArgs, err := listQuery.
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return page, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return page, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			policy    domain.Policy
			status    string
			startDate pgtype.Date
			endDate   pgtype.Date
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&policy.PolicyNumber,
			&policy.Customer,
			&policy.PolicyType,
			&startDate,
			&endDate,
			&policy.PremiumUSD,
			&status,
			&policy.InsuredValueUSD,
			&createdAt,
		); err != nil {
			return page, fmt.Errorf("failed to scan policy: %w", err)
		}
		policy.Status = domain.PolicyStatus(status)
		if startDate.Valid {
			policy.StartDate = startDate.Time
		}
		if endDate.Valid {
			policy.EndDate = endDate.Time
		}
		if createdAt.Valid {
			policy.CreatedAt = createdAt.Time
		}
		page.Items = append(page.Items, policy)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return page, nil
}

func (r *policyRepository) Summary(ctx context.Context) (domain.PolicySummary, error) {
	summary := domain.PolicySummary{
		CountByStatus: map[string]int{},
		CountByType:   map[string]int{},
		PremiumByType: map[string]float64{},
	}

	totalsSQL, _, err := psql.
		Select("COUNT(*)", "COALESCE(SUM(premium_usd), 0)").
		From("policies").
		ToSql()
	if err != nil {
		return summary, fmt.Errorf("failed to build totals query: %w", err)
	}
	if err := r.pool.QueryRow(ctx, totalsSQL).Scan(&summary.TotalPolicies, &summary.TotalPremiumUSD); err != nil {
		return summary, fmt.Errorf("failed to query policy totals: %w", err)
	}

	statusSQL, _, err := psql.
		Select("status", "COUNT(*)").
		From("policies").
		GroupBy("status").
		ToSql()
	if err != nil {
		return summary, fmt.Errorf("failed to build status breakdown query: %w", err)
	}
	statusRows, err := r.pool.Query(ctx, statusSQL)
	if err != nil {
		return summary, fmt.Errorf("failed to query status breakdown: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var (
			status string
			count  int
		)
		if err := statusRows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("failed to scan status breakdown: %w", err)
		}
		summary.CountByStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return summary, fmt.Errorf("failed to iterate status breakdown: %w", err)
	}

	typeSQL, _, err := psql.
		Select("policy_type", "COUNT(*)", "COALESCE(SUM(premium_usd), 0)").
		From("policies").
		GroupBy("policy_type").
		ToSql()
	if err != nil {
		return summary, fmt.Errorf("failed to build type breakdown query: %w", err)
	}
	typeRows, err := r.pool.Query(ctx, typeSQL)
	if err != nil {
		return summary, fmt.Errorf("failed to query type breakdown: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var (
			policyType string
			count      int
			premium    float64
		)
		if err := typeRows.Scan(&policyType, &count, &premium); err != nil {
			return summary, fmt.Errorf("failed to scan type breakdown: %w", err)
		}
		summary.CountByType[policyType] = count
		summary.PremiumByType[policyType] = premium
	}
	if err := typeRows.Err(); err != nil {
		return summary, fmt.Errorf("failed to iterate type breakdown: %w", err)
	}

	return summary, nil
}

func filterConditions(filter domain.PolicyFilter) []sq.Sqlizer {
	var conditions []sq.Sqlizer
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, sq.Or{
			sq.ILike{"policy_number": pattern},
			sq.ILike{"customer": pattern},
		})
	}
	if filter.Status != "" {
		conditions = append(conditions, sq.Eq{"status": filter.Status})
	}
	if filter.PolicyType != "" {
		conditions = append(conditions, sq.Eq{"policy_type": filter.PolicyType})
	}
	return conditions
}

// dateOrNil maps the zero time to a SQL NULL so optional calendar dates
// round-trip cleanly.
func dateOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
