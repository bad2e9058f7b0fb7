// Package memory provides in-process implementations of the repository ports.
// They back single-node deployments and the service-level tests; the Postgres
// adapters in internal/adapters/database provide the durable alternative.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// PatientAdapter implements PatientRepository over a mutex-guarded map
type PatientAdapter struct {
	mu       sync.RWMutex
	patients map[string]*entities.Patient
}

// NewPatientAdapter creates an empty in-memory patient store
func NewPatientAdapter() *PatientAdapter {
	return &PatientAdapter{patients: make(map[string]*entities.Patient)}
}

var _ repositories.PatientRepository = (*PatientAdapter)(nil)

// Create creates a new patient record
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.patients[patient.Token]; exists {
		return apperrors.NewDuplicateTokenError(patient.Token)
	}
	clone := *patient
	a.patients[patient.Token] = &clone
	return nil
}

// Update updates an existing patient record
func (a *PatientAdapter) Update(ctx context.Context, patient *entities.Patient) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.patients[patient.Token]; !exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with token %s not found", patient.Token))
	}
	clone := *patient
	a.patients[patient.Token] = &clone
	return nil
}

// Delete removes a patient record
func (a *PatientAdapter) Delete(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.patients[token]; !exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with token %s not found", token))
	}
	delete(a.patients, token)
	return nil
}

// GetByToken retrieves a patient by token
func (a *PatientAdapter) GetByToken(ctx context.Context, token string) (*entities.Patient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, exists := a.patients[token]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with token %s not found", token))
	}
	clone := *p
	return &clone, nil
}

// List retrieves patients matching the filter, ordered by registration time
func (a *PatientAdapter) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*entities.Patient
	for _, p := range a.patients {
		if filter.Department != "" && p.Department != filter.Department {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].Token < out[j].Token
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PurgeFinishedBefore deletes terminal patients registered before the cutoff
func (a *PatientAdapter) PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var removed int64
	for token, p := range a.patients {
		if p.Status.IsTerminal() && p.RegisteredAt.Before(cutoff) {
			delete(a.patients, token)
			removed++
		}
	}
	return removed, nil
}
