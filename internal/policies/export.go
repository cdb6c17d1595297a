package policies

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/policy-api/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// exportPageSize is the read page size while streaming an export.
const exportPageSize = 500

var exportHeaders = []string{
	"policy_number", "customer", "policy_type", "start_date", "end_date",
	"premium_usd", "status", "insured_value_usd", "created_at",
}

// Export handles GET /policies/export, writing the filtered policy set
// as a CSV or XLSX attachment.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		respondError(w, http.StatusBadRequest, "unsupported export format")
		return
	}

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

	policies, err := h.collectPolicies(r, filter)
	if err != nil {
		h.logger.Error("policy export failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to export policies")
		return
	}

	filename := fmt.Sprintf("policies-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "xlsx" {
		h.writeXLSX(w, policies)
		return
	}
	h.writeCSV(w, policies)
}

// collectPolicies pages through the filtered listing until exhausted.
func (h *Handler) collectPolicies(r *http.Request, filter domain.PolicyFilter) ([]domain.Policy, error) {
	var policies []domain.Policy
	offset := 0
	for {
		page, err := h.policyRepo.List(r.Context(), filter, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		policies = append(policies, page.Items...)
		offset += len(page.Items)
		if len(page.Items) < exportPageSize || offset >= page.Total {
			return policies, nil
		}
	}
}

func (h *Handler) writeCSV(w http.ResponseWriter, policies []domain.Policy) {
	w.Header().Set("Content-Type", "text/csv")

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(exportHeaders); err != nil {
		h.logger.Error("csv export write failed", zap.Error(err))
		return
	}
	for _, policy := range policies {
		if err := csvWriter.Write(exportRow(policy)); err != nil {
			h.logger.Error("csv export write failed", zap.Error(err))
			return
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		h.logger.Error("csv export flush failed", zap.Error(err))
	}
}

func (h *Handler) writeXLSX(w http.ResponseWriter, policies []domain.Policy) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for rowIdx, policy := range policies {
		for col, value := range exportRow(policy) {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		h.logger.Error("xlsx export write failed", zap.Error(err))
	}
}

func exportRow(policy domain.Policy) []string {
	return []string{
		policy.PolicyNumber,
		policy.Customer,
		policy.PolicyType,
		formatDate(policy.StartDate),
		formatDate(policy.EndDate),
		strconv.FormatFloat(policy.PremiumUSD, 'f', 2, 64),
		string(policy.Status),
		strconv.FormatFloat(policy.InsuredValueUSD, 'f', 2, 64),
		policy.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
