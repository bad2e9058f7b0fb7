package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/providers"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/infrastructure/observability"
	"github.com/triagewell/hospital-queue/internal/queue"
	"github.com/triagewell/hospital-queue/internal/stats"
	"github.com/triagewell/hospital-queue/internal/token"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
	"github.com/triagewell/hospital-queue/pkg/retry"
)

// QueueService owns the authoritative queue state and the transaction
// boundary around every lifecycle operation. Each operation mutates the
// in-memory engine, persists the patient delta together with its audit
// record through the injected repositories (bounded retry), and rolls the
// in-memory change back if the durable write ultimately fails: a transition
// never exists without its audit record, nor the record without the
// transition.
type QueueService struct {
	engine    *queue.Engine
	tokens    *token.Generator
	estimator *stats.Estimator

	patients    repositories.PatientRepository
	departments repositories.DepartmentRepository
	doctors     repositories.DoctorRepository
	audit       repositories.AuditRepository
	statsRepo   repositories.StatisticsRepository

	events  providers.EventBus
	metrics *observability.Metrics

	retryCfg retry.Config
	now      func() time.Time
}

// NewQueueService creates a new queue service. eventBus and metrics may be
// nil; both are best-effort side channels outside the atomic unit.
func NewQueueService(
	engine *queue.Engine,
	tokens *token.Generator,
	estimator *stats.Estimator,
	patientRepo repositories.PatientRepository,
	departmentRepo repositories.DepartmentRepository,
	doctorRepo repositories.DoctorRepository,
	auditRepo repositories.AuditRepository,
	statsRepo repositories.StatisticsRepository,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	retryCfg retry.Config,
) *QueueService {
	return &QueueService{
		engine:      engine,
		tokens:      tokens,
		estimator:   estimator,
		patients:    patientRepo,
		departments: departmentRepo,
		doctors:     doctorRepo,
		audit:       auditRepo,
		statsRepo:   statsRepo,
		events:      eventBus,
		metrics:     metrics,
		retryCfg:    retryCfg,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests.
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	s.now = now
	return s
}

// RegisterRequest carries the registration details captured at the desk
type RegisterRequest struct {
	FullName         string                 `json:"full_name"`
	Age              *int                   `json:"age,omitempty"`
	Gender           string                 `json:"gender,omitempty"`
	Phone            string                 `json:"phone,omitempty"`
	MedicalCondition string                 `json:"medical_condition,omitempty"`
	Department       string                 `json:"department"`
	Priority         entities.PriorityClass `json:"priority"`
	FollowUp         bool                   `json:"follow_up"`
	Notes            string                 `json:"notes,omitempty"`
	Actor            string                 `json:"actor,omitempty"`
}

// Restore rebuilds the in-memory engine and estimator from the durable
// store. Called once at startup, before the service accepts traffic. When
// the department catalog is empty it is seeded with the default hospital
// layout.
func (s *QueueService) Restore(ctx context.Context) error {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load departments: %w", err)
	}
	if len(depts) == 0 {
		if err := s.seedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed departments: %w", err)
		}
	}

	aggregates, err := s.statsRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load wait statistics: %w", err)
	}
	s.estimator.Seed(aggregates)

	waiting, err := s.patients.List(ctx, repositories.PatientFilter{Status: entities.PatientStatusWaiting})
	if err != nil {
		return fmt.Errorf("failed to load waiting patients: %w", err)
	}
	for _, p := range waiting {
		entry := &entities.QueueEntry{
			Token:      p.Token,
			Department: p.Department,
			Priority:   p.Priority,
			ArrivalAt:  p.RegisteredAt,
		}
		if err := s.engine.Enqueue(entry); err != nil {
			return fmt.Errorf("failed to restore queue entry %s: %w", p.Token, err)
		}
	}
	return nil
}

// Register issues a token, enqueues the patient and appends the audit
// record as one all-or-nothing unit.
func (s *QueueService) Register(ctx context.Context, req RegisterRequest) (*entities.Patient, error) {
	if req.FullName == "" {
		return nil, apperrors.NewValidationError("full_name is required")
	}
	if !req.Priority.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority class %q", req.Priority))
	}

	dept, err := s.departments.GetByCode(ctx, req.Department)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewInvalidDepartmentError(req.Department)
		}
		return nil, err
	}

	tok, err := s.tokens.Issue(ctx, dept.Code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ahead := s.engine.Depth(dept.Code)

	patient := &entities.Patient{
		Token:             tok,
		FullName:          req.FullName,
		Age:               req.Age,
		Gender:            req.Gender,
		Phone:             req.Phone,
		MedicalCondition:  req.MedicalCondition,
		Department:        dept.Code,
		Priority:          req.Priority,
		FollowUp:          req.FollowUp,
		Status:            entities.PatientStatusWaiting,
		RegisteredAt:      now,
		EstimatedWaitMins: s.estimateMinutes(dept, ahead),
		Notes:             req.Notes,
	}

	entry := &entities.QueueEntry{
		Token:      tok,
		Department: dept.Code,
		Priority:   req.Priority,
		ArrivalAt:  now,
	}
	if err := s.engine.Enqueue(entry); err != nil {
		return nil, err
	}
	position := s.engine.Position(tok)

	if err := s.persist(ctx, func() error { return s.patients.Create(ctx, patient) }); err != nil {
		s.engine.Remove(tok)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist registration", err)
	}

	record := &entities.AuditRecord{
		Token:         tok,
		Kind:          entities.EventKindRegistered,
		ToStatus:      entities.PatientStatusWaiting,
		PositionAfter: &position,
		Actor:         req.Actor,
		Timestamp:     now,
	}
	if err := s.persist(ctx, func() error { return s.audit.Append(ctx, record) }); err != nil {
		// Roll the whole registration back: the enqueue and its audit
		// record are transactionally coupled.
		s.engine.Remove(tok)
		if delErr := s.patients.Delete(ctx, tok); delErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(delErr).
				Str("token", tok).Msg("failed to compensate partial registration")
		}
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist audit record", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration(ctx, dept.Code, string(req.Priority))
	}
	s.publish(ctx, entities.NewQueueEvent(tok, dept.Code, entities.EventKindRegistered, map[string]interface{}{
		"priority": req.Priority,
		"position": position,
	}))
	return patient, nil
}

// CallNext removes the highest-priority waiting patient of a department,
// moves them into consultation and assigns an available doctor if the
// roster has one.
func (s *QueueService) CallNext(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	if _, err := s.departments.GetByCode(ctx, departmentCode); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewInvalidDepartmentError(departmentCode)
		}
		return nil, err
	}

	entry, err := s.engine.DequeueNext(departmentCode)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByToken(ctx, entry.Token)
	if err != nil {
		s.engine.Enqueue(entry)
		return nil, apperrors.NewInternalError("queued token has no patient record", err)
	}
	prev := *patient

	now := s.now()
	if err := patient.StartConsultation(now); err != nil {
		// The record store disagrees with the queue; drop the stale entry.
		return nil, err
	}

	doctor := s.pickDoctor(ctx, departmentCode, entry.Token)
	if doctor != nil {
		patient.DoctorID = &doctor.ID
	}

	if err := s.persist(ctx, func() error { return s.patients.Update(ctx, patient) }); err != nil {
		s.engine.Enqueue(entry)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist consultation start", err)
	}

	positionBefore := 1
	record := &entities.AuditRecord{
		Token:          entry.Token,
		Kind:           entities.EventKindConsultationStarted,
		FromStatus:     entities.PatientStatusWaiting,
		ToStatus:       entities.PatientStatusInConsultation,
		PositionBefore: &positionBefore,
		Timestamp:      now,
	}
	if err := s.persist(ctx, func() error { return s.audit.Append(ctx, record) }); err != nil {
		if revErr := s.patients.Update(ctx, &prev); revErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(revErr).
				Str("token", entry.Token).Msg("failed to revert consultation start")
		}
		s.engine.Enqueue(entry)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist audit record", err)
	}

	if doctor != nil {
		// Roster updates are advisory; a failure here must not undo the
		// transition that is already on the ledger.
		if err := s.doctors.Upsert(ctx, doctor); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("doctor_id", doctor.ID).Msg("failed to persist doctor assignment")
		}
	}

	if s.metrics != nil {
		s.metrics.RecordDequeue(ctx, departmentCode, string(patient.Priority))
	}
	s.publish(ctx, entities.NewQueueEvent(entry.Token, departmentCode, entities.EventKindConsultationStarted, nil))
	return patient, nil
}

// FinishConsultation completes an in-consultation patient, folds the wait
// and consultation durations into the department statistics and frees the
// assigned doctor.
func (s *QueueService) FinishConsultation(ctx context.Context, tok string) (*entities.Patient, error) {
	patient, err := s.patients.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	prev := *patient

	now := s.now()
	if err := patient.Complete(now); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, func() error { return s.patients.Update(ctx, patient) }); err != nil {
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist completion", err)
	}

	record := &entities.AuditRecord{
		Token:      tok,
		Kind:       entities.EventKindConsultationCompleted,
		FromStatus: entities.PatientStatusInConsultation,
		ToStatus:   entities.PatientStatusCompleted,
		Timestamp:  now,
	}
	if err := s.persist(ctx, func() error { return s.audit.Append(ctx, record) }); err != nil {
		if revErr := s.patients.Update(ctx, &prev); revErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(revErr).
				Str("token", tok).Msg("failed to revert completion")
		}
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist audit record", err)
	}

	// Exactly one statistics update per completed consultation. The
	// aggregate is derivable from the audit ledger, so a failed upsert is
	// logged rather than rolled back.
	aggregate := s.estimator.RecordCompletion(patient.Department, patient.WaitDuration(), patient.ConsultDuration())
	if err := s.persist(ctx, func() error { return s.statsRepo.Upsert(ctx, aggregate) }); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("department", patient.Department).Msg("failed to persist wait statistics")
	}

	s.releaseDoctor(ctx, patient.DoctorID)

	if s.metrics != nil {
		s.metrics.RecordCompletion(ctx, patient.Department, patient.ConsultDuration())
	}
	s.publish(ctx, entities.NewQueueEvent(tok, patient.Department, entities.EventKindConsultationCompleted, map[string]interface{}{
		"wait_minutes":    int(patient.WaitDuration().Minutes()),
		"consult_minutes": int(patient.ConsultDuration().Minutes()),
	}))
	return patient, nil
}

// Cancel withdraws a waiting patient from the queue
func (s *QueueService) Cancel(ctx context.Context, tok string, reason string) (*entities.Patient, error) {
	patient, err := s.patients.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if patient.Status != entities.PatientStatusWaiting {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("patient %s cannot be cancelled from status %s", tok, patient.Status))
	}
	prev := *patient

	entry, position, err := s.engine.Remove(tok)
	if err != nil {
		return nil, err
	}

	if err := patient.Cancel(); err != nil {
		s.engine.Enqueue(entry)
		return nil, err
	}

	now := s.now()
	if err := s.persist(ctx, func() error { return s.patients.Update(ctx, patient) }); err != nil {
		s.engine.Enqueue(entry)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist cancellation", err)
	}

	record := &entities.AuditRecord{
		Token:          tok,
		Kind:           entities.EventKindCancelled,
		FromStatus:     entities.PatientStatusWaiting,
		ToStatus:       entities.PatientStatusCancelled,
		PositionBefore: &position,
		Actor:          reason,
		Timestamp:      now,
	}
	if err := s.persist(ctx, func() error { return s.audit.Append(ctx, record) }); err != nil {
		if revErr := s.patients.Update(ctx, &prev); revErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(revErr).
				Str("token", tok).Msg("failed to revert cancellation")
		}
		s.engine.Enqueue(entry)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist audit record", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCancellation(ctx, patient.Department)
	}
	s.publish(ctx, entities.NewQueueEvent(tok, patient.Department, entities.EventKindCancelled, nil))
	return patient, nil
}

// Promote re-ranks a waiting patient to a higher (or lower) priority class.
// The original arrival time is kept, preserving first-in first-out fairness
// within the new class.
func (s *QueueService) Promote(ctx context.Context, tok string, newClass entities.PriorityClass) (*entities.Patient, error) {
	if !newClass.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority class %q", newClass))
	}

	patient, err := s.patients.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if patient.Status != entities.PatientStatusWaiting {
		return nil, apperrors.NewNotWaitingError(tok)
	}
	prevClass := patient.Priority

	before, after, err := s.engine.Promote(tok, newClass)
	if err != nil {
		return nil, err
	}
	patient.Priority = newClass

	now := s.now()
	if err := s.persist(ctx, func() error { return s.patients.Update(ctx, patient) }); err != nil {
		s.engine.Promote(tok, prevClass)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist promotion", err)
	}

	record := &entities.AuditRecord{
		Token:          tok,
		Kind:           entities.EventKindPromoted,
		FromStatus:     entities.PatientStatusWaiting,
		ToStatus:       entities.PatientStatusWaiting,
		PositionBefore: &before,
		PositionAfter:  &after,
		Timestamp:      now,
	}
	if err := s.persist(ctx, func() error { return s.audit.Append(ctx, record) }); err != nil {
		patient.Priority = prevClass
		if revErr := s.patients.Update(ctx, patient); revErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(revErr).
				Str("token", tok).Msg("failed to revert promotion")
		}
		s.engine.Promote(tok, prevClass)
		return nil, apperrors.NewPersistenceUnavailableError("failed to persist audit record", err)
	}

	s.publish(ctx, entities.NewQueueEvent(tok, patient.Department, entities.EventKindPromoted, map[string]interface{}{
		"from": prevClass,
		"to":   newClass,
	}))
	return patient, nil
}

// Patient retrieves a patient by token
func (s *QueueService) Patient(ctx context.Context, tok string) (*entities.Patient, error) {
	return s.patients.GetByToken(ctx, tok)
}

// NextPatient returns the next patient to be called for a department
// without removing them. Returns nil when the queue is empty.
func (s *QueueService) NextPatient(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	entry, ok := s.engine.Peek(departmentCode)
	if !ok {
		return nil, nil
	}
	return s.patients.GetByToken(ctx, entry.Token)
}

// CurrentPatient returns the patient currently in consultation for a
// department, nil when there is none.
func (s *QueueService) CurrentPatient(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	inConsult, err := s.patients.List(ctx, repositories.PatientFilter{
		Department: departmentCode,
		Status:     entities.PatientStatusInConsultation,
	})
	if err != nil {
		return nil, err
	}
	if len(inConsult) == 0 {
		return nil, nil
	}

	current := inConsult[0]
	for _, p := range inConsult[1:] {
		if p.ConsultStartedAt != nil && current.ConsultStartedAt != nil &&
			p.ConsultStartedAt.Before(*current.ConsultStartedAt) {
			current = p
		}
	}
	return current, nil
}

// QueueSnapshot returns the waiting patients of a department in serving order
func (s *QueueService) QueueSnapshot(ctx context.Context, departmentCode string) ([]*entities.Patient, error) {
	entries := s.engine.Snapshot(departmentCode)
	out := make([]*entities.Patient, 0, len(entries))
	for _, entry := range entries {
		p, err := s.patients.GetByToken(ctx, entry.Token)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("token", entry.Token).Msg("queued token has no patient record")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DepartmentLoad returns the number of waiting patients for a department
func (s *QueueService) DepartmentLoad(departmentCode string) int {
	return s.engine.Depth(departmentCode)
}

// Purge removes completed and cancelled patients plus audit records older
// than the cutoff. Retention is an external collaborator's concern; the
// core only exposes the operation.
func (s *QueueService) Purge(ctx context.Context, cutoff time.Time) (patients int64, records int64, err error) {
	patients, err = s.patients.PurgeFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, apperrors.NewPersistenceUnavailableError("failed to purge patients", err)
	}
	records, err = s.audit.PurgeBefore(ctx, cutoff)
	if err != nil {
		return patients, 0, apperrors.NewPersistenceUnavailableError("failed to purge audit records", err)
	}
	return patients, records, nil
}

// persist runs a durable write with bounded exponential backoff
func (s *QueueService) persist(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, s.retryCfg, fn)
}

// estimateMinutes derives the wait estimate stamped on a new registration.
// Falls back to the department's default consultation length while no
// completed consultation exists yet.
func (s *QueueService) estimateMinutes(dept *entities.Department, ahead int) int {
	if est, known := s.estimator.Estimate(dept.Code, ahead, dept.ActiveDoctors); known {
		return int(est.Minutes())
	}
	doctors := dept.ActiveDoctors
	if doctors < 1 {
		doctors = 1
	}
	return dept.DefaultConsultMinutes * ahead / doctors
}

// pickDoctor returns the first available doctor of a department, already
// marked busy with the token, or nil when the roster has none free.
func (s *QueueService) pickDoctor(ctx context.Context, departmentCode, tok string) *entities.Doctor {
	available, err := s.doctors.ListByDepartment(ctx, departmentCode, true)
	if err != nil || len(available) == 0 {
		return nil
	}
	doctor := available[0]
	doctor.Assign(tok)
	return doctor
}

// releaseDoctor frees the doctor assigned to a finished patient
func (s *QueueService) releaseDoctor(ctx context.Context, doctorID *string) {
	if doctorID == nil {
		return
	}
	doctor, err := s.doctors.GetByID(ctx, *doctorID)
	if err != nil {
		return
	}
	doctor.Release()
	if err := s.doctors.Upsert(ctx, doctor); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("doctor_id", doctor.ID).Msg("failed to release doctor")
	}
}

// publish emits a queue event to the department channel and the global
// updates channel. Best-effort: failures are logged, never surfaced.
func (s *QueueService) publish(ctx context.Context, event *entities.QueueEvent) {
	if s.events == nil {
		return
	}
	for _, channel := range []string{
		providers.GetDepartmentChannel(event.Department),
		providers.EventChannelQueueUpdates,
	} {
		if err := s.events.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("channel", channel).Msg("failed to publish queue event")
		}
	}
}

// seedDefaults installs the default department catalog and roster used when
// the store is empty at startup.
func (s *QueueService) seedDefaults(ctx context.Context) error {
	defaults := []*entities.Department{
		{Code: "ER", Name: "Emergency", ActiveDoctors: 3, DefaultConsultMinutes: 15},
		{Code: "GM", Name: "General Medicine", ActiveDoctors: 2, DefaultConsultMinutes: 45},
		{Code: "PED", Name: "Pediatrics", ActiveDoctors: 2, DefaultConsultMinutes: 30},
		{Code: "CARD", Name: "Cardiology", ActiveDoctors: 1, DefaultConsultMinutes: 60},
		{Code: "ORTH", Name: "Orthopedics", ActiveDoctors: 1, DefaultConsultMinutes: 40},
		{Code: "DERM", Name: "Dermatology", ActiveDoctors: 1, DefaultConsultMinutes: 25},
	}
	for _, d := range defaults {
		if err := s.departments.Upsert(ctx, d); err != nil {
			return err
		}
	}

	roster := []*entities.Doctor{
		{Name: "Dr. Smith", Department: "ER", Specialization: "Emergency Medicine", Available: true},
		{Name: "Dr. Johnson", Department: "ER", Specialization: "Trauma", Available: true},
		{Name: "Dr. Williams", Department: "GM", Specialization: "General Physician", Available: true},
		{Name: "Dr. Brown", Department: "PED", Specialization: "Pediatrician", Available: true},
		{Name: "Dr. Davis", Department: "CARD", Specialization: "Cardiologist", Available: true},
	}
	for _, d := range roster {
		d.ID = uuid.New().String()
		if err := s.doctors.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
