package repositories

import (
	"context"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations.
// Implementations must offer atomic read-modify-write semantics per call;
// the core treats this as the injected durable store.
type PatientRepository interface {
	// Create creates a new patient record
	Create(ctx context.Context, patient *entities.Patient) error

	// Update updates an existing patient record
	Update(ctx context.Context, patient *entities.Patient) error

	// Delete removes a patient record. Used only to compensate a partially
	// persisted registration; regular lifecycles end in a terminal status.
	Delete(ctx context.Context, token string) error

	// GetByToken retrieves a patient by token
	GetByToken(ctx context.Context, token string) (*entities.Patient, error)

	// List retrieves patients matching the filter
	List(ctx context.Context, filter PatientFilter) ([]*entities.Patient, error)

	// PurgeFinishedBefore deletes completed and cancelled patients registered
	// before the cutoff and returns the number of rows removed
	PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PatientFilter defines filters for listing patients
type PatientFilter struct {
	Department string
	Status     entities.PatientStatus
	Limit      int
	Offset     int
}
