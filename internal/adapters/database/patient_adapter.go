package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/infrastructure/clients/postgres"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

var patientColumns = []interface{}{
	"token", "full_name", "age", "gender", "phone", "medical_condition",
	"department", "priority", "follow_up", "status", "doctor_id",
	"registered_at", "consult_started_at", "consult_ended_at",
	"estimated_wait_minutes", "notes",
}

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new patient record
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	query, args, err := a.db.Insert("patients").Rows(patientRecord(patient)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create patient", err)
	}

	return nil
}

// Update updates an existing patient record
func (a *PatientAdapter) Update(ctx context.Context, patient *entities.Patient) error {
	record := patientRecord(patient)
	delete(record, "token")

	query, args, err := a.db.Update("patients").
		Set(record).
		Where(goqu.Ex{"token": patient.Token}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update patient", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient with token %s not found", patient.Token))
	}

	return nil
}

// Delete removes a patient record
func (a *PatientAdapter) Delete(ctx context.Context, token string) error {
	query, args, err := a.db.Delete("patients").
		Where(goqu.Ex{"token": token}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete patient", err)
	}

	return nil
}

// GetByToken retrieves a patient by token
func (a *PatientAdapter) GetByToken(ctx context.Context, token string) (*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Ex{"token": token}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	patient, err := scanPatient(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with token %s not found", token))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

// List retrieves patients matching the filter
func (a *PatientAdapter) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	ds := a.db.Select(patientColumns...).From("patients")

	if filter.Department != "" {
		ds = ds.Where(goqu.Ex{"department": filter.Department})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}

	ds = ds.Order(goqu.I("registered_at").Asc(), goqu.I("token").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows.Scan)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}

	return patients, nil
}

// PurgeFinishedBefore deletes completed and cancelled patients registered
// before the cutoff
func (a *PatientAdapter) PurgeFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := a.db.Delete("patients").
		Where(
			goqu.C("status").In(string(entities.PatientStatusCompleted), string(entities.PatientStatusCancelled)),
			goqu.C("registered_at").Lt(cutoff),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build purge query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to purge patients", err)
	}

	return result.RowsAffected()
}

func patientRecord(patient *entities.Patient) goqu.Record {
	return goqu.Record{
		"token":                  patient.Token,
		"full_name":              patient.FullName,
		"age":                    patient.Age,
		"gender":                 patient.Gender,
		"phone":                  patient.Phone,
		"medical_condition":      patient.MedicalCondition,
		"department":             patient.Department,
		"priority":               patient.Priority,
		"follow_up":              patient.FollowUp,
		"status":                 patient.Status,
		"doctor_id":              patient.DoctorID,
		"registered_at":          patient.RegisteredAt,
		"consult_started_at":     patient.ConsultStartedAt,
		"consult_ended_at":       patient.ConsultEndedAt,
		"estimated_wait_minutes": patient.EstimatedWaitMins,
		"notes":                  patient.Notes,
	}
}

func scanPatient(scan func(dest ...interface{}) error) (*entities.Patient, error) {
	patient := &entities.Patient{}
	var age sql.NullInt64
	var gender, phone, condition, doctorID, notes sql.NullString
	var consultStarted, consultEnded sql.NullTime

	err := scan(
		&patient.Token,
		&patient.FullName,
		&age,
		&gender,
		&phone,
		&condition,
		&patient.Department,
		&patient.Priority,
		&patient.FollowUp,
		&patient.Status,
		&doctorID,
		&patient.RegisteredAt,
		&consultStarted,
		&consultEnded,
		&patient.EstimatedWaitMins,
		&notes,
	)
	if err != nil {
		return nil, err
	}

	if age.Valid {
		v := int(age.Int64)
		patient.Age = &v
	}
	patient.Gender = gender.String
	patient.Phone = phone.String
	patient.MedicalCondition = condition.String
	if doctorID.Valid {
		patient.DoctorID = &doctorID.String
	}
	if consultStarted.Valid {
		t := consultStarted.Time
		patient.ConsultStartedAt = &t
	}
	if consultEnded.Valid {
		t := consultEnded.Time
		patient.ConsultEndedAt = &t
	}
	patient.Notes = notes.String

	return patient, nil
}
