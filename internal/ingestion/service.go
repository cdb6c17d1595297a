// Package ingestion drives one uploaded batch end to end: parsing,
// technical normalization, business rule evaluation, duplicate
// filtering, transactional insert, and ledger accounting.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/policy-api/internal/domain"
	"github.com/rpattn/policy-api/internal/repository"
	"github.com/rpattn/policy-api/internal/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// UploadEndpoint is the ledger endpoint name for batch ingestion.
const UploadEndpoint = "/upload"

var (
	// ErrNoFile is returned when the request carried no file at all.
	ErrNoFile = errors.New("no file uploaded")
	// ErrEmptyFile is returned when the uploaded file has zero bytes.
	ErrEmptyFile = errors.New("empty file")
)

// Service orchestrates batch ingestion.
type Service struct {
	policyRepo repository.PolicyRepository
	opRepo     repository.OperationRepository
	validator  *rules.Validator
	logger     *zap.Logger
}

// NewService wires the orchestrator with the default rule set.
func NewService(policyRepo repository.PolicyRepository, opRepo repository.OperationRepository, logger *zap.Logger) *Service {
	return &Service{
		policyRepo: policyRepo,
		opRepo:     opRepo,
		validator:  rules.NewDefaultValidator(),
		logger:     logger,
	}
}

// Request describes one uploaded batch. Data is nil when the request
// carried no file.
type Request struct {
	FileName      string
	CorrelationID string
	Data          []byte
}

// Result is the accounting returned to the caller for one batch.
type Result struct {
	OperationID   uuid.UUID         `json:"operation_id"`
	CorrelationID string            `json:"correlation_id"`
	InsertedCount int               `json:"inserted_count"`
	RejectedCount int               `json:"rejected_count"`
	Errors        []domain.RowError `json:"errors"`
}

// pendingCandidate keeps a valid candidate paired with its source row.
type pendingCandidate struct {
	rowNumber int
	candidate domain.PolicyCandidate
}

// Process runs the ingestion pipeline for one batch. The returned
// Result always carries the operation and correlation identifiers; a
// non-nil error classifies the failure for the transport layer
// (ErrNoFile/ErrEmptyFile are client errors, anything else is fatal).
func (s *Service) Process(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	operationID := uuid.New()
	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	result := Result{
		OperationID:   operationID,
		CorrelationID: correlationID,
		Errors:        []domain.RowError{},
	}

	s.logger.Info("upload received",
		zap.String("correlation_id", correlationID),
		zap.String("operation_id", operationID.String()),
		zap.String("endpoint", UploadEndpoint),
	)

	// The ledger record must exist before any row is touched; failing
	// to register is fatal for the whole request.
	op := domain.NewOperation(operationID, UploadEndpoint, correlationID)
	if err := s.opRepo.Create(ctx, op); err != nil {
		s.logBatch(zapcore.ErrorLevel, result, domain.OperationFailed, time.Since(start), err.Error())
		return result, fmt.Errorf("failed to register operation: %w", err)
	}

	if req.Data == nil {
		s.finalize(ctx, &result, domain.OperationFailed, start, ErrNoFile.Error())
		return result, ErrNoFile
	}
	if len(req.Data) == 0 {
		s.finalize(ctx, &result, domain.OperationFailed, start, ErrEmptyFile.Error())
		return result, ErrEmptyFile
	}

	rows, err := parseTable(req.FileName, req.Data)
	if err != nil {
		s.finalize(ctx, &result, domain.OperationFailed, start, err.Error())
		return result, fmt.Errorf("failed to parse upload: %w", err)
	}

	// First pass: technical normalization, then business rules. Every
	// violation is recorded; a row with any violation produces no
	// candidate.
	var valid []pendingCandidate
	for idx, raw := range rows {
		rowNumber := idx + 1
		candidate, rowErrors := normalizeRow(raw, rowNumber)
		if len(rowErrors) > 0 {
			result.Errors = append(result.Errors, rowErrors...)
			continue
		}

		violations := s.validator.Validate(candidate)
		if len(violations) > 0 {
			for _, violation := range violations {
				result.Errors = append(result.Errors, domain.NewRowError(rowNumber, violation))
			}
			continue
		}

		valid = append(valid, pendingCandidate{rowNumber: rowNumber, candidate: candidate})
	}

	// First-occurrence mapping, built once: policy number -> earliest
	// row that produced it. Duplicate rejections are attributed there.
	firstRow := make(map[string]int, len(valid))
	for _, pending := range valid {
		if _, seen := firstRow[pending.candidate.PolicyNumber]; !seen {
			firstRow[pending.candidate.PolicyNumber] = pending.rowNumber
		}
	}

	// Pre-insert duplicate check: one storage lookup for the whole
	// batch. Best effort; the insert-time constraint is authoritative.
	var toInsert []pendingCandidate
	if len(valid) > 0 {
		numbers := make([]string, 0, len(firstRow))
		for _, pending := range valid {
			if firstRow[pending.candidate.PolicyNumber] == pending.rowNumber {
				numbers = append(numbers, pending.candidate.PolicyNumber)
			}
		}

		existing, err := s.policyRepo.FindExisting(ctx, numbers)
		if err != nil {
			s.finalize(ctx, &result, domain.OperationFailed, start, err.Error())
			return result, fmt.Errorf("failed to check existing policies: %w", err)
		}

		toInsert = make([]pendingCandidate, 0, len(valid))
		for _, pending := range valid {
			if firstRow[pending.candidate.PolicyNumber] != pending.rowNumber {
				// Repeat within the batch: rejected under its own row,
				// even when the number also exists in storage.
				result.Errors = append(result.Errors, duplicateRowError(pending.rowNumber))
				continue
			}
			if _, dup := existing[pending.candidate.PolicyNumber]; dup {
				// Already persisted: the first occurrence carries the
				// rejection.
				result.Errors = append(result.Errors, duplicateRowError(pending.rowNumber))
				continue
			}
			toInsert = append(toInsert, pending)
		}
	}

	inserted := len(toInsert)
	if len(toInsert) > 0 {
		candidates := make([]domain.PolicyCandidate, len(toInsert))
		for i, pending := range toInsert {
			candidates[i] = pending.candidate
		}

		if err := s.policyRepo.InsertMany(ctx, candidates); err != nil {
			if !errors.Is(err, repository.ErrDuplicatePolicy) {
				s.finalize(ctx, &result, domain.OperationFailed, start, err.Error())
				return result, fmt.Errorf("failed to insert policies: %w", err)
			}

			// A uniqueness conflict lost a race against a concurrent
			// batch: the transaction rolled back, so every pending
			// candidate becomes a duplicate rejection and the response
			// stays a success.
			for _, pending := range toInsert {
				result.Errors = append(result.Errors, duplicateRowError(firstRow[pending.candidate.PolicyNumber]))
			}
			inserted = 0
		}
	}

	result.InsertedCount = inserted

	summary := ""
	if len(result.Errors) > 0 {
		summary = fmt.Sprintf("%d row(s) rejected", len(result.Errors))
	}
	s.finalize(ctx, &result, domain.OperationCompleted, start, summary)
	return result, nil
}

func duplicateRowError(rowNumber int) domain.RowError {
	return domain.NewRowError(rowNumber, domain.RuleViolation{
		Code:    domain.CodeDuplicatePolicyNumber,
		Field:   "policy_number",
		Message: "policy_number already exists",
	})
}

// finalize applies the exactly-once terminal ledger update and emits
// the per-batch structured log record. A ledger update failure is
// logged but never masks the primary response.
func (s *Service) finalize(ctx context.Context, result *Result, status domain.OperationStatus, start time.Time, errorSummary string) {
	elapsed := time.Since(start)

	// The rejected count always mirrors the accumulated errors list,
	// including rejections gathered before a batch-fatal failure.
	result.RejectedCount = len(result.Errors)

	metrics := domain.OperationMetrics{
		Status:       status,
		RowsInserted: result.InsertedCount,
		RowsRejected: result.RejectedCount,
		DurationMS:   elapsed.Milliseconds(),
		ErrorSummary: errorSummary,
	}
	if err := s.opRepo.UpdateMetrics(ctx, result.OperationID, metrics); err != nil {
		s.logger.Error("failed to update operation metrics",
			zap.String("correlation_id", result.CorrelationID),
			zap.String("operation_id", result.OperationID.String()),
			zap.Error(err),
		)
	}

	level := zapcore.InfoLevel
	if status == domain.OperationFailed {
		level = zapcore.ErrorLevel
	}
	s.logBatch(level, *result, status, elapsed, errorSummary)
}

func (s *Service) logBatch(level zapcore.Level, result Result, status domain.OperationStatus, elapsed time.Duration, errorSummary string) {
	fields := []zap.Field{
		zap.String("correlation_id", result.CorrelationID),
		zap.String("operation_id", result.OperationID.String()),
		zap.String("endpoint", UploadEndpoint),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int("inserted_count", result.InsertedCount),
		zap.Int("rejected_count", result.RejectedCount),
		zap.String("status", string(status)),
	}
	if errorSummary != "" {
		fields = append(fields, zap.String("error", errorSummary))
	}
	if entry := s.logger.Check(level, "upload processed"); entry != nil {
		entry.Write(fields...)
	}
}
