package repositories

import (
	"context"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// DepartmentRepository defines the interface for department data operations
type DepartmentRepository interface {
	// Upsert creates or replaces a department
	Upsert(ctx context.Context, department *entities.Department) error

	// GetByCode retrieves a department by its code
	GetByCode(ctx context.Context, code string) (*entities.Department, error)

	// List retrieves all departments
	List(ctx context.Context) ([]*entities.Department, error)

	// NextSequence atomically increments and returns the department's token
	// sequence for the given calendar day (formatted YYYYMMDD). The first call
	// of a day returns 1. The increment is durable before it is returned: a
	// crash after the increment burns the number, it never duplicates it.
	NextSequence(ctx context.Context, code string, day string) (int64, error)
}

// DoctorRepository defines the interface for doctor roster operations
type DoctorRepository interface {
	// Upsert creates or replaces a doctor
	Upsert(ctx context.Context, doctor *entities.Doctor) error

	// GetByID retrieves a doctor by id
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)

	// ListByDepartment retrieves the roster of a department, optionally
	// restricted to doctors currently available
	ListByDepartment(ctx context.Context, department string, onlyAvailable bool) ([]*entities.Doctor, error)
}
