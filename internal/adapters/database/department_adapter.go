package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/infrastructure/clients/postgres"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// DepartmentAdapter implements the DepartmentRepository interface
type DepartmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDepartmentAdapter creates a new department adapter
func NewDepartmentAdapter(client *postgres.Client) repositories.DepartmentRepository {
	return &DepartmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or replaces a department
func (a *DepartmentAdapter) Upsert(ctx context.Context, department *entities.Department) error {
	query := `
		INSERT INTO departments (code, name, active_doctors, default_consult_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			active_doctors = EXCLUDED.active_doctors,
			default_consult_minutes = EXCLUDED.default_consult_minutes
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		department.Code,
		department.Name,
		department.ActiveDoctors,
		department.DefaultConsultMinutes,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert department", err)
	}

	return nil
}

// GetByCode retrieves a department by its code
func (a *DepartmentAdapter) GetByCode(ctx context.Context, code string) (*entities.Department, error) {
	query, args, err := a.db.Select("code", "name", "active_doctors", "default_consult_minutes").
		From("departments").
		Where(goqu.Ex{"code": code}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	department := &entities.Department{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&department.Code,
		&department.Name,
		&department.ActiveDoctors,
		&department.DefaultConsultMinutes,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("department with code %s not found", code))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get department", err)
	}

	return department, nil
}

// List retrieves all departments
func (a *DepartmentAdapter) List(ctx context.Context) ([]*entities.Department, error) {
	query, args, err := a.db.Select("code", "name", "active_doctors", "default_consult_minutes").
		From("departments").
		Order(goqu.I("code").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list departments", err)
	}
	defer rows.Close()

	var departments []*entities.Department
	for rows.Next() {
		department := &entities.Department{}
		err := rows.Scan(
			&department.Code,
			&department.Name,
			&department.ActiveDoctors,
			&department.DefaultConsultMinutes,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan department", err)
		}
		departments = append(departments, department)
	}

	return departments, nil
}

// NextSequence atomically increments and returns the per-day token sequence.
// The upsert both creates the first row of a day and bumps later ones in a
// single statement, so the draw is race-free across connections and the
// increment is durable before the number is handed out.
func (a *DepartmentAdapter) NextSequence(ctx context.Context, code string, day string) (int64, error) {
	query := `
		INSERT INTO department_sequences (department, day, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (department, day) DO UPDATE SET seq = department_sequences.seq + 1
		RETURNING seq
	`

	var seq int64
	err := a.client.DB().QueryRowContext(ctx, query, code, day).Scan(&seq)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to draw token sequence", err)
	}

	return seq, nil
}

// DoctorAdapter implements the DoctorRepository interface
type DoctorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDoctorAdapter creates a new doctor adapter
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or replaces a doctor
func (a *DoctorAdapter) Upsert(ctx context.Context, doctor *entities.Doctor) error {
	query := `
		INSERT INTO doctors (id, name, department, specialization, available, current_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			specialization = EXCLUDED.specialization,
			available = EXCLUDED.available,
			current_token = EXCLUDED.current_token
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Department,
		doctor.Specialization,
		doctor.Available,
		doctor.CurrentToken,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert doctor", err)
	}

	return nil
}

// GetByID retrieves a doctor by id
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	query, args, err := a.db.Select("id", "name", "department", "specialization", "available", "current_token").
		From("doctors").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor, err := scanDoctor(a.client.DB().QueryRowContext(ctx, query, args...).Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}

	return doctor, nil
}

// ListByDepartment retrieves the roster of a department
func (a *DoctorAdapter) ListByDepartment(ctx context.Context, department string, onlyAvailable bool) ([]*entities.Doctor, error) {
	ds := a.db.Select("id", "name", "department", "specialization", "available", "current_token").
		From("doctors").
		Where(goqu.Ex{"department": department})

	if onlyAvailable {
		ds = ds.Where(goqu.Ex{"available": true})
	}

	ds = ds.Order(goqu.I("name").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	var doctors []*entities.Doctor
	for rows.Next() {
		doctor, err := scanDoctor(rows.Scan)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}

	return doctors, nil
}

func scanDoctor(scan func(dest ...interface{}) error) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	var specialization, currentToken sql.NullString

	err := scan(
		&doctor.ID,
		&doctor.Name,
		&doctor.Department,
		&specialization,
		&doctor.Available,
		&currentToken,
	)
	if err != nil {
		return nil, err
	}

	doctor.Specialization = specialization.String
	if currentToken.Valid {
		doctor.CurrentToken = &currentToken.String
	}

	return doctor, nil
}
