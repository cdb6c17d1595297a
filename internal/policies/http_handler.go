// Package policies exposes read endpoints over the persisted policy
// set and the operation ledger.
package policies

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/policy-api/internal/domain"
	"github.com/rpattn/policy-api/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves policy queries and ledger lookups.
type Handler struct {
	policyRepo repository.PolicyRepository
	opRepo     repository.OperationRepository
	logger     *zap.Logger
}

func NewHandler(policyRepo repository.PolicyRepository, opRepo repository.OperationRepository, logger *zap.Logger) *Handler {
	return &Handler{policyRepo: policyRepo, opRepo: opRepo, logger: logger}
}

// listResponse is the paged wire shape for GET /policies.
type listResponse struct {
	Items  []domain.Policy `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// List handles GET /policies with optional search, status and
// policy_type filters plus limit/offset paging.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.PolicyFilter{
		Search:     strings.TrimSpace(query.Get("search")),
		PolicyType: strings.TrimSpace(query.Get("policy_type")),
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParsePolicyStatus(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = string(status)
	}

	limit, err := queryInt(query.Get("limit"), 50)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	page, err := h.policyRepo.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.logger.Error("policy list failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list policies")
		return
	}

	items := page.Items
	if items == nil {
		items = []domain.Policy{}
	}
	respondJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
	})
}

// Summary handles GET /policies/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.policyRepo.Summary(r.Context())
	if err != nil {
		h.logger.Error("policy summary failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetOperation handles GET /operations/{operationID}.
func (h *Handler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "operationID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid operation id")
		return
	}

	op, err := h.opRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOperationNotFound) {
			respondError(w, http.StatusNotFound, "operation not found")
			return
		}
		h.logger.Error("operation lookup failed", zap.Error(err), zap.String("operation_id", id.String()))
		respondError(w, http.StatusInternalServerError, "failed to load operation")
		return
	}
	respondJSON(w, http.StatusOK, op)
}

func queryInt(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
