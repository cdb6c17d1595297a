package policies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpattn/policy-api/internal/domain"
	"github.com/rpattn/policy-api/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubPolicyRepo struct {
	page    domain.PolicyPage
	summary domain.PolicySummary
	err     error

	lastFilter domain.PolicyFilter
	lastLimit  int
	lastOffset int
}

func (s *stubPolicyRepo) InsertMany(ctx context.Context, candidates []domain.PolicyCandidate) error {
	return nil
}

func (s *stubPolicyRepo) FindExisting(ctx context.Context, policyNumbers []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *stubPolicyRepo) List(ctx context.Context, filter domain.PolicyFilter, limit, offset int) (domain.PolicyPage, error) {
	s.lastFilter = filter
	s.lastLimit = limit
	s.lastOffset = offset
	return s.page, s.err
}

func (s *stubPolicyRepo) Summary(ctx context.Context) (domain.PolicySummary, error) {
	return s.summary, s.err
}

type stubOperationRepo struct {
	op  domain.Operation
	err error
}

func (s *stubOperationRepo) Create(ctx context.Context, op domain.Operation) error { return nil }

func (s *stubOperationRepo) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics domain.OperationMetrics) error {
	return nil
}

func (s *stubOperationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Operation, error) {
	return s.op, s.err
}

func newTestRouter(policyRepo *stubPolicyRepo, opRepo *stubOperationRepo) *chi.Mux {
	handler := NewHandler(policyRepo, opRepo, zap.NewNop())
	router := chi.NewRouter()
	router.Get("/policies", handler.List)
	router.Get("/policies/summary", handler.Summary)
	router.Get("/policies/export", handler.Export)
	router.Get("/operations/{operationID}", handler.GetOperation)
	return router
}

func samplePolicy(number string) domain.Policy {
	return domain.Policy{
		PolicyCandidate: domain.PolicyCandidate{
			PolicyNumber:    number,
			Customer:        "Acme Corp",
			PolicyType:      domain.PolicyTypeProperty,
			StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			PremiumUSD:      1200,
			Status:          domain.PolicyStatusActive,
			InsuredValueUSD: 250000,
		},
		CreatedAt: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListPolicies(t *testing.T) {
	policyRepo := &stubPolicyRepo{
		page: domain.PolicyPage{Items: []domain.Policy{samplePolicy("POL-1")}, Total: 12},
	}
	router := newTestRouter(policyRepo, &stubOperationRepo{})

	req := httptest.NewRequest(http.MethodGet, "/policies?search=acme&status=Active&policy_type=Property&limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if policyRepo.lastFilter.Search != "acme" || policyRepo.lastFilter.Status != "active" || policyRepo.lastFilter.PolicyType != "Property" {
		t.Fatalf("unexpected filter: %+v", policyRepo.lastFilter)
	}
	if policyRepo.lastLimit != 5 || policyRepo.lastOffset != 10 {
		t.Fatalf("unexpected paging: limit=%d offset=%d", policyRepo.lastLimit, policyRepo.lastOffset)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response payload: %v", err)
	}
	if resp.Total != 12 || len(resp.Items) != 1 || resp.Items[0].PolicyNumber != "POL-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListPoliciesDefaultsAndCaps(t *testing.T) {
	policyRepo := &stubPolicyRepo{}
	router := newTestRouter(policyRepo, &stubOperationRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
	if policyRepo.lastLimit != 50 {
		t.Fatalf("expected default limit 50, got %d", policyRepo.lastLimit)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies?limit=1000", nil))
	if policyRepo.lastLimit != 200 {
		t.Fatalf("expected limit capped at 200, got %d", policyRepo.lastLimit)
	}
}

func TestListPoliciesRejectsBadInput(t *testing.T) {
	router := newTestRouter(&stubPolicyRepo{}, &stubOperationRepo{})

	for _, target := range []string{
		"/policies?status=paused",
		"/policies?limit=abc",
		"/policies?offset=-1",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestListPoliciesEmptySetIsAnArray(t *testing.T) {
	router := newTestRouter(&stubPolicyRepo{}, &stubOperationRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response payload: %v", err)
	}
	if string(resp["items"]) != "[]" {
		t.Fatalf("expected empty array, got %s", resp["items"])
	}
}

func TestListPoliciesStorageFailure(t *testing.T) {
	router := newTestRouter(&stubPolicyRepo{err: errors.New("connection reset")}, &stubOperationRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	policyRepo := &stubPolicyRepo{
		summary: domain.PolicySummary{
			TotalPolicies:   3,
			TotalPremiumUSD: 4500,
			CountByStatus:   map[string]int{"active": 2, "expired": 1},
			CountByType:     map[string]int{"Property": 2, "Auto": 1},
			PremiumByType:   map[string]float64{"Property": 3000, "Auto": 1500},
		},
	}
	router := newTestRouter(policyRepo, &stubOperationRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp domain.PolicySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response payload: %v", err)
	}
	if resp.TotalPolicies != 3 || resp.CountByStatus["active"] != 2 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
}

func TestGetOperation(t *testing.T) {
	id := uuid.New()
	inserted := 2
	opRepo := &stubOperationRepo{op: domain.Operation{
		ID:           id,
		Endpoint:     "/upload",
		Status:       domain.OperationCompleted,
		RowsInserted: &inserted,
	}}
	router := newTestRouter(&stubPolicyRepo{}, opRepo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/"+id.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp domain.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response payload: %v", err)
	}
	if resp.ID != id || resp.Status != domain.OperationCompleted || *resp.RowsInserted != 2 {
		t.Fatalf("unexpected operation: %+v", resp)
	}
}

func TestGetOperationBadID(t *testing.T) {
	router := newTestRouter(&stubPolicyRepo{}, &stubOperationRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetOperationNotFound(t *testing.T) {
	id := uuid.New()
	opRepo := &stubOperationRepo{err: fmt.Errorf("operation %s: %w", id, repository.ErrOperationNotFound)}
	router := newTestRouter(&stubPolicyRepo{}, opRepo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/"+id.String(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
