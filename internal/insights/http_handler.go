package insights

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rpattn/policy-api/internal/domain"

	"go.uber.org/zap"
)

// Handler exposes the briefing as GET /insights with optional
// search/status/policy_type filters.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.PolicyFilter{
		Search:     strings.TrimSpace(query.Get("search")),
		PolicyType: strings.TrimSpace(query.Get("policy_type")),
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParsePolicyStatus(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		filter.Status = string(status)
	}

	report, err := h.service.Generate(r.Context(), filter)
	if err != nil {
		h.logger.Error("insight generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate insights"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
