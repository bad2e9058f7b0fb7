package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// DepartmentAdapter implements DepartmentRepository. Sequences are keyed by
// (code, day) so the counter resets naturally at day rollover while staying
// strictly increasing within a day.
type DepartmentAdapter struct {
	mu          sync.Mutex
	departments map[string]*entities.Department
	sequences   map[string]int64
}

// NewDepartmentAdapter creates an empty in-memory department store
func NewDepartmentAdapter() *DepartmentAdapter {
	return &DepartmentAdapter{
		departments: make(map[string]*entities.Department),
		sequences:   make(map[string]int64),
	}
}

var _ repositories.DepartmentRepository = (*DepartmentAdapter)(nil)

// Upsert creates or replaces a department
func (a *DepartmentAdapter) Upsert(ctx context.Context, department *entities.Department) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	clone := *department
	a.departments[department.Code] = &clone
	return nil
}

// GetByCode retrieves a department by its code
func (a *DepartmentAdapter) GetByCode(ctx context.Context, code string) (*entities.Department, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, exists := a.departments[code]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("department with code %s not found", code))
	}
	clone := *d
	return &clone, nil
}

// List retrieves all departments ordered by code
func (a *DepartmentAdapter) List(ctx context.Context) ([]*entities.Department, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*entities.Department, 0, len(a.departments))
	for _, d := range a.departments {
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// NextSequence atomically increments the per-day counter for a department
func (a *DepartmentAdapter) NextSequence(ctx context.Context, code string, day string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.departments[code]; !exists {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("department with code %s not found", code))
	}

	key := code + ":" + day
	a.sequences[key]++
	return a.sequences[key], nil
}

// DoctorAdapter implements DoctorRepository over a mutex-guarded map
type DoctorAdapter struct {
	mu      sync.Mutex
	doctors map[string]*entities.Doctor
}

// NewDoctorAdapter creates an empty in-memory doctor roster
func NewDoctorAdapter() *DoctorAdapter {
	return &DoctorAdapter{doctors: make(map[string]*entities.Doctor)}
}

var _ repositories.DoctorRepository = (*DoctorAdapter)(nil)

// Upsert creates or replaces a doctor
func (a *DoctorAdapter) Upsert(ctx context.Context, doctor *entities.Doctor) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	clone := *doctor
	a.doctors[doctor.ID] = &clone
	return nil
}

// GetByID retrieves a doctor by id
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, exists := a.doctors[id]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	clone := *d
	return &clone, nil
}

// ListByDepartment retrieves a department's roster ordered by name
func (a *DoctorAdapter) ListByDepartment(ctx context.Context, department string, onlyAvailable bool) ([]*entities.Doctor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*entities.Doctor
	for _, d := range a.doctors {
		if d.Department != department {
			continue
		}
		if onlyAvailable && !d.Available {
			continue
		}
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
