package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// AuditService defines the interface for audit ledger reads
type AuditService interface {
	History(ctx context.Context, token string) ([]*entities.AuditRecord, error)
	Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error)
}

// PurgeService defines the retention operation exposed to admins
type PurgeService interface {
	Purge(ctx context.Context, cutoff time.Time) (patients int64, records int64, err error)
}

// AuditHandler handles audit ledger requests
type AuditHandler struct {
	audit          AuditService
	purge          PurgeService
	purgeAfterDays int
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit AuditService, purge PurgeService, purgeAfterDays int) *AuditHandler {
	return &AuditHandler{
		audit:          audit,
		purge:          purge,
		purgeAfterDays: purgeAfterDays,
	}
}

// GetHistory handles GET /api/patients/{token}/history
func (h *AuditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	records, err := h.audit.History(r.Context(), token)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"records": records,
		"count":   len(records),
	})
}

// DumpRecords handles GET /api/audit/dump
func (h *AuditHandler) DumpRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var since time.Time
	if sinceStr := query.Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid since date format (use RFC3339)")
			return
		}
		since = parsed
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	records, err := h.audit.Dump(r.Context(), since, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// PurgeOldRecords handles POST /api/admin/purge
func (h *AuditHandler) PurgeOldRecords(w http.ResponseWriter, r *http.Request) {
	days := h.purgeAfterDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	patients, records, err := h.purge.Purge(r.Context(), cutoff)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"cutoff":          cutoff,
		"patients_purged": patients,
		"records_purged":  records,
	})
}
