package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// QueueService defines the interface for patient queue operations
type QueueService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*entities.Patient, error)
	CallNext(ctx context.Context, departmentCode string) (*entities.Patient, error)
	FinishConsultation(ctx context.Context, token string) (*entities.Patient, error)
	Cancel(ctx context.Context, token string, reason string) (*entities.Patient, error)
	Promote(ctx context.Context, token string, newClass entities.PriorityClass) (*entities.Patient, error)
	Patient(ctx context.Context, token string) (*entities.Patient, error)
}

// PatientHandler handles patient lifecycle requests
type PatientHandler struct {
	service QueueService
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(service QueueService) *PatientHandler {
	return &PatientHandler{
		service: service,
	}
}

// RegisterPatient handles POST /api/patients
func (h *PatientHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	patient, err := h.service.Register(r.Context(), req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, patient)
}

// GetPatient handles GET /api/patients/{token}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	patient, err := h.service.Patient(r.Context(), token)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// CompleteConsultation handles POST /api/patients/{token}/complete
func (h *PatientHandler) CompleteConsultation(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	patient, err := h.service.FinishConsultation(r.Context(), token)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// CancelPatient handles POST /api/patients/{token}/cancel
func (h *PatientHandler) CancelPatient(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional
	_ = json.NewDecoder(r.Body).Decode(&body)

	patient, err := h.service.Cancel(r.Context(), token, body.Reason)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// PromotePatient handles POST /api/patients/{token}/promote
func (h *PatientHandler) PromotePatient(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	var body struct {
		Priority entities.PriorityClass `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	patient, err := h.service.Promote(r.Context(), token, body.Priority)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps application error types to HTTP status codes
func respondWithAppError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeInvalidDepartment, apperrors.ErrorTypeNotFound, apperrors.ErrorTypeEmptyQueue:
			respondWithError(w, http.StatusNotFound, appErr.Message)
		case apperrors.ErrorTypeDuplicateToken, apperrors.ErrorTypeInvalidTransition, apperrors.ErrorTypeNotWaiting:
			respondWithError(w, http.StatusConflict, appErr.Message)
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
		case apperrors.ErrorTypePersistenceUnavailable:
			respondWithError(w, http.StatusServiceUnavailable, appErr.Message)
		default:
			respondWithError(w, http.StatusInternalServerError, appErr.Message)
		}
		return
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}
