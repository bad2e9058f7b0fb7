package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// DepartmentQueueService defines queue reads scoped to one department
type DepartmentQueueService interface {
	CallNext(ctx context.Context, departmentCode string) (*entities.Patient, error)
	NextPatient(ctx context.Context, departmentCode string) (*entities.Patient, error)
	CurrentPatient(ctx context.Context, departmentCode string) (*entities.Patient, error)
	QueueSnapshot(ctx context.Context, departmentCode string) ([]*entities.Patient, error)
}

// StatisticsService defines the interface for load and wait-time reads
type StatisticsService interface {
	Departments(ctx context.Context) ([]*entities.Department, error)
	EstimatedWait(ctx context.Context, code string) (time.Duration, bool, error)
	AverageWait(ctx context.Context, code string) (time.Duration, bool, error)
	DepartmentLoad(ctx context.Context, code string) (int, error)
	Summary(ctx context.Context) ([]*services.DepartmentSummary, error)
}

// DepartmentHandler handles department queue requests
type DepartmentHandler struct {
	queue DepartmentQueueService
	stats StatisticsService
}

// NewDepartmentHandler creates a new department handler
func NewDepartmentHandler(queue DepartmentQueueService, stats StatisticsService) *DepartmentHandler {
	return &DepartmentHandler{
		queue: queue,
		stats: stats,
	}
}

// ListDepartments handles GET /api/departments
func (h *DepartmentHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.stats.Summary(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"departments": summaries,
		"count":       len(summaries),
	})
}

// GetQueue handles GET /api/departments/{code}/queue
func (h *DepartmentHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "department code is required")
		return
	}

	patients, err := h.queue.QueueSnapshot(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department": code,
		"patients":   patients,
		"count":      len(patients),
	})
}

// CallNext handles POST /api/departments/{code}/call
func (h *DepartmentHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "department code is required")
		return
	}

	patient, err := h.queue.CallNext(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// GetNext handles GET /api/departments/{code}/next
func (h *DepartmentHandler) GetNext(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "department code is required")
		return
	}

	patient, err := h.queue.NextPatient(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if patient == nil {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"department": code,
			"patient":    nil,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department": code,
		"patient":    patient,
	})
}

// GetCurrent handles GET /api/departments/{code}/current
func (h *DepartmentHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "department code is required")
		return
	}

	patient, err := h.queue.CurrentPatient(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department": code,
		"patient":    patient,
	})
}

// GetEstimate handles GET /api/departments/{code}/estimate
func (h *DepartmentHandler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "department code is required")
		return
	}

	estimate, known, err := h.stats.EstimatedWait(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	load, err := h.stats.DepartmentLoad(r.Context(), code)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department":             code,
		"waiting":                load,
		"estimated_wait_minutes": int(estimate.Minutes()),
		"estimate_known":         known,
	})
}
