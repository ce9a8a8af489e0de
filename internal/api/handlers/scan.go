package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/internal/domain/services"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// ScanHandler handles email scan API requests
type ScanHandler struct {
	scanner      *services.Scanner
	maxBatchSize int
	logger       *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scanner *services.Scanner, maxBatchSize int, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scanner:      scanner,
		maxBatchSize: maxBatchSize,
		logger:       log.WithComponent("scan-handler"),
	}
}

// Scan handles POST /api/v1/scan
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		h.respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	result := h.scanner.Scan(r.Context(), req)

	h.respondJSON(w, http.StatusOK, result)
}

// ScanBatch handles POST /api/v1/scan/batch
func (h *ScanHandler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	var req models.ScanBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Emails) == 0 {
		h.respondError(w, http.StatusBadRequest, "emails array is required")
		return
	}

	if len(req.Emails) > h.maxBatchSize {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("maximum %d emails per batch", h.maxBatchSize))
		return
	}

	for i, email := range req.Emails {
		if strings.TrimSpace(email.Content) == "" {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("emails[%d]: content is required", i))
			return
		}
	}

	result := h.scanner.ScanBatch(r.Context(), req)

	h.respondJSON(w, http.StatusOK, result)
}

// CheckURL handles POST /api/v1/url/check
func (h *ScanHandler) CheckURL(w http.ResponseWriter, r *http.Request) {
	var req models.URLCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.scanner.CheckURL(r.Context(), req.URL)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "url could not be parsed")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Quota handles GET /api/v1/quota
func (h *ScanHandler) Quota(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.scanner.Quota(r.Context()))
}

// Stats handles GET /api/v1/stats
func (h *ScanHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.scanner.Stats())
}

func (h *ScanHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *ScanHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
