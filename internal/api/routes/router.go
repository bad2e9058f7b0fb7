package routes

import (
	"net/http"

	"github.com/triagewell/hospital-queue/internal/api/handlers"
	"github.com/triagewell/hospital-queue/internal/api/middleware"
	"github.com/triagewell/hospital-queue/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	patientHandler    *handlers.PatientHandler
	departmentHandler *handlers.DepartmentHandler
	auditHandler      *handlers.AuditHandler
	sseHandler        *handlers.SSEHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	patientHandler *handlers.PatientHandler,
	departmentHandler *handlers.DepartmentHandler,
	auditHandler *handlers.AuditHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		patientHandler:    patientHandler,
		departmentHandler: departmentHandler,
		auditHandler:      auditHandler,
		sseHandler:        sseHandler,
		metrics:           metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Patient endpoints
	r.mux.HandleFunc("POST /api/patients", r.patientHandler.RegisterPatient)
	r.mux.HandleFunc("GET /api/patients/{token}", r.patientHandler.GetPatient)
	r.mux.HandleFunc("POST /api/patients/{token}/complete", r.patientHandler.CompleteConsultation)
	r.mux.HandleFunc("POST /api/patients/{token}/cancel", r.patientHandler.CancelPatient)
	r.mux.HandleFunc("POST /api/patients/{token}/promote", r.patientHandler.PromotePatient)
	r.mux.HandleFunc("GET /api/patients/{token}/history", r.auditHandler.GetHistory)

	// Department endpoints
	r.mux.HandleFunc("GET /api/departments", r.departmentHandler.ListDepartments)
	r.mux.HandleFunc("GET /api/departments/{code}/queue", r.departmentHandler.GetQueue)
	r.mux.HandleFunc("POST /api/departments/{code}/call", r.departmentHandler.CallNext)
	r.mux.HandleFunc("GET /api/departments/{code}/next", r.departmentHandler.GetNext)
	r.mux.HandleFunc("GET /api/departments/{code}/current", r.departmentHandler.GetCurrent)
	r.mux.HandleFunc("GET /api/departments/{code}/estimate", r.departmentHandler.GetEstimate)

	// Audit endpoints
	r.mux.HandleFunc("GET /api/audit/dump", r.auditHandler.DumpRecords)
	r.mux.HandleFunc("POST /api/admin/purge", r.auditHandler.PurgeOldRecords)

	// Real-time streams
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/departments/{code}", r.sseHandler.StreamDepartmentUpdates)
		r.mux.HandleFunc("GET /api/stream/updates", r.sseHandler.StreamAllUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS wraps everything so headers are set on every response.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
