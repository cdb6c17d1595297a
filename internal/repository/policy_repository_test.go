package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/policy-api/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func candidate(number string) domain.PolicyCandidate {
	return domain.PolicyCandidate{
		PolicyNumber:    number,
		Customer:        "Acme Corp",
		PolicyType:      domain.PolicyTypeProperty,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PremiumUSD:      1200,
		Status:          domain.PolicyStatusActive,
		InsuredValueUSD: 250000,
	}
}

func TestInsertMany(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectBegin()
	for _, number := range []string{"POL-1", "POL-2"} {
		pool.ExpectExec("INSERT INTO policies").
			WithArgs(number, "Acme Corp", "Property",
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				1200.0, "active", 250000.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	pool.ExpectCommit()

	err := repo.InsertMany(context.Background(), []domain.PolicyCandidate{
		candidate("POL-1"),
		candidate("POL-2"),
	})
	require.NoError(t, err)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestInsertManyEmptyBatch(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	require.NoError(t, repo.InsertMany(context.Background(), nil))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestInsertManyUniqueViolation(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO policies").
		WithArgs("POL-1", "Acme Corp", "Property",
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			1200.0, "active", 250000.0).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	pool.ExpectRollback()

	err := repo.InsertMany(context.Background(), []domain.PolicyCandidate{candidate("POL-1")})
	require.ErrorIs(t, err, ErrDuplicatePolicy)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestInsertManyOtherErrorIsNotDuplicate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO policies").
		WithArgs("POL-1", "Acme Corp", "Property",
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			1200.0, "active", 250000.0).
		WillReturnError(errors.New("connection reset"))
	pool.ExpectRollback()

	err := repo.InsertMany(context.Background(), []domain.PolicyCandidate{candidate("POL-1")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicatePolicy))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestInsertManyNullDates(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	dateless := candidate("POL-1")
	dateless.StartDate = time.Time{}
	dateless.EndDate = time.Time{}

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO policies").
		WithArgs("POL-1", "Acme Corp", "Property",
			nil, nil,
			1200.0, "active", 250000.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, repo.InsertMany(context.Background(), []domain.PolicyCandidate{dateless}))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindExisting(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectQuery(`SELECT policy_number FROM policies WHERE policy_number = ANY\(\$1\)`).
		WithArgs([]string{"POL-1", "POL-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"policy_number"}).AddRow("POL-2"))

	existing, err := repo.FindExisting(context.Background(), []string{"POL-1", "POL-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"POL-2": {}}, existing)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestFindExistingEmptyInput(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	existing, err := repo.FindExisting(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectQuery(`SELECT COUNT\(\*\) FROM policies`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	pool.ExpectQuery(`SELECT policy_number, customer, .* FROM policies ORDER BY created_at DESC LIMIT 50 OFFSET 0`).
		WillReturnRows(pgxmock.NewRows([]string{
			"policy_number", "customer", "policy_type", "start_date", "end_date",
			"premium_usd", "status", "insured_value_usd", "created_at",
		}).
			AddRow("POL-1", "Acme Corp", "Property",
				pgtype.Date{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
				pgtype.Date{Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
				1200.0, "active", 250000.0,
				pgtype.Timestamptz{Time: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), Valid: true}).
			AddRow("POL-2", "Globex", "Auto",
				pgtype.Date{}, pgtype.Date{},
				900.0, "expired", 30000.0,
				pgtype.Timestamptz{}))

	page, err := repo.List(context.Background(), domain.PolicyFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "POL-1", page.Items[0].PolicyNumber)
	assert.Equal(t, domain.PolicyStatusActive, page.Items[0].Status)
	assert.False(t, page.Items[0].StartDate.IsZero())
	assert.True(t, page.Items[1].StartDate.IsZero())
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestListWithFilters(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectQuery(`SELECT COUNT\(\*\) FROM policies WHERE`).
		WithArgs("%acme%", "%acme%", "active", "Property").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	pool.ExpectQuery(`SELECT policy_number, customer, .* FROM policies WHERE .* LIMIT 10 OFFSET 20`).
		WithArgs("%acme%", "%acme%", "active", "Property").
		WillReturnRows(pgxmock.NewRows([]string{
			"policy_number", "customer", "policy_type", "start_date", "end_date",
			"premium_usd", "status", "insured_value_usd", "created_at",
		}))

	page, err := repo.List(context.Background(), domain.PolicyFilter{
		Search:     "acme",
		Status:     "active",
		PolicyType: "Property",
	}, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestSummary(t *testing.T) {
	pool := newMockPool(t)
	repo := NewPolicyRepository(pool)

	pool.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(premium_usd\), 0\) FROM policies`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(3, 4500.0))
	pool.ExpectQuery(`SELECT status, COUNT\(\*\) FROM policies GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("active", 2).
			AddRow("expired", 1))
	pool.ExpectQuery(`SELECT policy_type, COUNT\(\*\), COALESCE\(SUM\(premium_usd\), 0\) FROM policies GROUP BY policy_type`).
		WillReturnRows(pgxmock.NewRows([]string{"policy_type", "count", "sum"}).
			AddRow("Property", 2, 3000.0).
			AddRow("Auto", 1, 1500.0))

	summary, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalPolicies)
	assert.Equal(t, 4500.0, summary.TotalPremiumUSD)
	assert.Equal(t, map[string]int{"active": 2, "expired": 1}, summary.CountByStatus)
	assert.Equal(t, map[string]float64{"Property": 3000, "Auto": 1500}, summary.PremiumByType)
	require.NoError(t, pool.ExpectationsWereMet())
}
