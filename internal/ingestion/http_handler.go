package ingestion

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Handler exposes batch ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST multipart endpoint.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// uploadResponse is the wire shape of the ingestion contract; Error is
// only present on failed requests.
type uploadResponse struct {
	Result
	Error string `json:"error,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := Request{
		CorrelationID: r.Header.Get("X-Correlation-ID"),
	}

	// A multipart request without the file field is still processed so
	// the ledger records the failed attempt.
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				http.Error(w, "failed to read file", http.StatusBadRequest)
				return
			}
			req.FileName = header.Filename
			req.Data = data
			if req.Data == nil {
				req.Data = []byte{}
			}
		}
	}

	result, err := h.service.Process(r.Context(), req)
	if err == nil {
		writeJSON(w, http.StatusOK, uploadResponse{Result: result})
		return
	}

	status := http.StatusInternalServerError
	message := "internal error while processing the upload"
	if errors.Is(err, ErrNoFile) || errors.Is(err, ErrEmptyFile) {
		status = http.StatusBadRequest
		message = err.Error()
	}
	writeJSON(w, status, uploadResponse{Result: result, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
