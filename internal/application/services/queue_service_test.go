package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagewell/hospital-queue/internal/adapters/memory"
	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/queue"
	"github.com/triagewell/hospital-queue/internal/stats"
	"github.com/triagewell/hospital-queue/internal/token"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
	"github.com/triagewell/hospital-queue/pkg/retry"
)

// failingAuditRepository fails Append on demand while delegating reads
type failingAuditRepository struct {
	repositories.AuditRepository
	failAppend bool
}

func (f *failingAuditRepository) Append(ctx context.Context, record *entities.AuditRecord) error {
	if f.failAppend {
		return errors.New("store unavailable")
	}
	return f.AuditRepository.Append(ctx, record)
}

// failingPatientRepository fails writes on demand while delegating reads
type failingPatientRepository struct {
	repositories.PatientRepository
	failCreate bool
	failUpdate bool
}

func (f *failingPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	if f.failCreate {
		return errors.New("store unavailable")
	}
	return f.PatientRepository.Create(ctx, patient)
}

func (f *failingPatientRepository) Update(ctx context.Context, patient *entities.Patient) error {
	if f.failUpdate {
		return errors.New("store unavailable")
	}
	return f.PatientRepository.Update(ctx, patient)
}

type fixture struct {
	engine    *queue.Engine
	estimator *stats.Estimator

	patients    *failingPatientRepository
	departments *memory.DepartmentAdapter
	doctors     *memory.DoctorAdapter
	audit       *failingAuditRepository
	statsRepo   *memory.StatisticsAdapter

	service *services.QueueService
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		engine:      queue.NewEngine(),
		estimator:   stats.NewEstimator(),
		patients:    &failingPatientRepository{PatientRepository: memory.NewPatientAdapter()},
		departments: memory.NewDepartmentAdapter(),
		doctors:     memory.NewDoctorAdapter(),
		audit:       &failingAuditRepository{AuditRepository: memory.NewAuditAdapter()},
		statsRepo:   memory.NewStatisticsAdapter(),
		now:         time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, f.departments.Upsert(ctx, &entities.Department{
		Code: "ER", Name: "Emergency", ActiveDoctors: 1, DefaultConsultMinutes: 15,
	}))
	require.NoError(t, f.departments.Upsert(ctx, &entities.Department{
		Code: "GM", Name: "General Medicine", ActiveDoctors: 2, DefaultConsultMinutes: 45,
	}))

	generator := token.NewGenerator(f.departments).WithClock(func() time.Time { return f.now })
	retryCfg := retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	f.service = services.NewQueueService(
		f.engine,
		generator,
		f.estimator,
		f.patients,
		f.departments,
		f.doctors,
		f.audit,
		f.statsRepo,
		nil,
		nil,
		retryCfg,
	).WithClock(func() time.Time { return f.now })

	return f
}

func (f *fixture) register(t *testing.T, dept string, class entities.PriorityClass) *entities.Patient {
	t.Helper()
	patient, err := f.service.Register(context.Background(), services.RegisterRequest{
		FullName:   "Jane Doe",
		Department: dept,
		Priority:   class,
	})
	require.NoError(t, err)
	return patient
}

func TestQueueService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("issues sequential tokens and queues the patient", func(t *testing.T) {
		f := newFixture(t)

		first := f.register(t, "ER", entities.PriorityClassNormal)
		second := f.register(t, "ER", entities.PriorityClassNormal)

		assert.Equal(t, "ER-20250120-001", first.Token)
		assert.Equal(t, "ER-20250120-002", second.Token)
		assert.Equal(t, entities.PatientStatusWaiting, first.Status)
		assert.Equal(t, 2, f.service.DepartmentLoad("ER"))

		stored, err := f.patients.GetByToken(ctx, first.Token)
		require.NoError(t, err)
		assert.Equal(t, entities.PatientStatusWaiting, stored.Status)

		records, err := f.audit.Query(ctx, first.Token)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, entities.EventKindRegistered, records[0].Kind)
		assert.Equal(t, entities.PatientStatusWaiting, records[0].ToStatus)
		require.NotNil(t, records[0].PositionAfter)
		assert.Equal(t, 1, *records[0].PositionAfter)
	})

	t.Run("unknown department", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Register(ctx, services.RegisterRequest{
			FullName:   "Jane Doe",
			Department: "XX",
			Priority:   entities.PriorityClassNormal,
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidDepartment))
	})

	t.Run("invalid priority", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Register(ctx, services.RegisterRequest{
			FullName:   "Jane Doe",
			Department: "ER",
			Priority:   "CRITICAL",
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("missing name", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Register(ctx, services.RegisterRequest{
			Department: "ER",
			Priority:   entities.PriorityClassNormal,
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("audit failure rolls the registration back", func(t *testing.T) {
		f := newFixture(t)
		f.audit.failAppend = true

		_, err := f.service.Register(ctx, services.RegisterRequest{
			FullName:   "Jane Doe",
			Department: "ER",
			Priority:   entities.PriorityClassNormal,
		})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))
		assert.Equal(t, 0, f.service.DepartmentLoad("ER"), "queue must not hold a phantom entry")

		_, err = f.patients.GetByToken(ctx, "ER-20250120-001")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "partially persisted patient must be compensated")
	})

	t.Run("create failure surfaces persistence unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.patients.failCreate = true

		_, err := f.service.Register(ctx, services.RegisterRequest{
			FullName:   "Jane Doe",
			Department: "ER",
			Priority:   entities.PriorityClassNormal,
		})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))
		assert.Equal(t, 0, f.service.DepartmentLoad("ER"))
	})
}

func TestQueueService_CallNext(t *testing.T) {
	ctx := context.Background()

	t.Run("emergency overtakes earlier normals", func(t *testing.T) {
		f := newFixture(t)

		f.register(t, "ER", entities.PriorityClassNormal)
		f.now = f.now.Add(time.Minute)
		f.register(t, "ER", entities.PriorityClassNormal)
		f.now = f.now.Add(time.Minute)
		emergency := f.register(t, "ER", entities.PriorityClassEmergency)

		called, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, emergency.Token, called.Token)
		assert.Equal(t, entities.PatientStatusInConsultation, called.Status)
		require.NotNil(t, called.ConsultStartedAt)

		next, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, "ER-20250120-001", next.Token)
	})

	t.Run("assigns an available doctor", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.doctors.Upsert(ctx, &entities.Doctor{
			ID: "doc-1", Name: "Dr. Smith", Department: "ER", Available: true,
		}))

		p := f.register(t, "ER", entities.PriorityClassNormal)
		called, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		require.NotNil(t, called.DoctorID)
		assert.Equal(t, "doc-1", *called.DoctorID)

		doctor, err := f.doctors.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.False(t, doctor.Available)
		require.NotNil(t, doctor.CurrentToken)
		assert.Equal(t, p.Token, *doctor.CurrentToken)
	})

	t.Run("empty queue", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CallNext(ctx, "ER")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyQueue))
	})

	t.Run("unknown department", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CallNext(ctx, "XX")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidDepartment))
	})

	t.Run("update failure requeues the patient", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)
		f.patients.failUpdate = true

		_, err := f.service.CallNext(ctx, "ER")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))

		assert.Equal(t, 1, f.service.DepartmentLoad("ER"))
		stored, getErr := f.patients.GetByToken(ctx, p.Token)
		require.NoError(t, getErr)
		assert.Equal(t, entities.PatientStatusWaiting, stored.Status)
	})
}

func TestQueueService_FinishConsultation(t *testing.T) {
	ctx := context.Background()

	t.Run("completes and feeds the estimator", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)

		f.now = f.now.Add(10 * time.Minute)
		_, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		f.now = f.now.Add(20 * time.Minute)
		done, err := f.service.FinishConsultation(ctx, p.Token)
		require.NoError(t, err)
		assert.Equal(t, entities.PatientStatusCompleted, done.Status)

		aggregate, err := f.statsRepo.GetByDepartment(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, int64(1), aggregate.CompletedCount)
		assert.Equal(t, 10*time.Minute, aggregate.WaitSum)
		assert.Equal(t, 20*time.Minute, aggregate.ConsultSum)

		est, known := f.estimator.Estimate("ER", 3, 1)
		require.True(t, known)
		assert.Equal(t, 60*time.Minute, est)
	})

	t.Run("releases the doctor", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.doctors.Upsert(ctx, &entities.Doctor{
			ID: "doc-1", Name: "Dr. Smith", Department: "ER", Available: true,
		}))

		p := f.register(t, "ER", entities.PriorityClassNormal)
		_, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		_, err = f.service.FinishConsultation(ctx, p.Token)
		require.NoError(t, err)

		doctor, err := f.doctors.GetByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.True(t, doctor.Available)
		assert.Nil(t, doctor.CurrentToken)
	})

	t.Run("waiting patient cannot complete", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)

		_, err := f.service.FinishConsultation(ctx, p.Token)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidTransition))

		stored, getErr := f.patients.GetByToken(ctx, p.Token)
		require.NoError(t, getErr)
		assert.Equal(t, entities.PatientStatusWaiting, stored.Status)
		assert.Equal(t, 1, f.service.DepartmentLoad("ER"), "failed completion must not disturb the queue")
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.FinishConsultation(ctx, "ER-20250120-404")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("audit failure reverts the completion", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)
		_, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		f.audit.failAppend = true
		_, err = f.service.FinishConsultation(ctx, p.Token)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))

		stored, getErr := f.patients.GetByToken(ctx, p.Token)
		require.NoError(t, getErr)
		assert.Equal(t, entities.PatientStatusInConsultation, stored.Status)

		aggregate, aggErr := f.statsRepo.GetByDepartment(ctx, "ER")
		if aggErr == nil {
			assert.Equal(t, int64(0), aggregate.CompletedCount, "failed completion must not count")
		}
	})
}

func TestQueueService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a waiting patient", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ER", entities.PriorityClassEmergency)
		f.now = f.now.Add(time.Minute)
		second := f.register(t, "ER", entities.PriorityClassNormal)

		cancelled, err := f.service.Cancel(ctx, second.Token, "left without notice")
		require.NoError(t, err)
		assert.Equal(t, entities.PatientStatusCancelled, cancelled.Status)
		assert.Equal(t, 1, f.service.DepartmentLoad("ER"))

		records, err := f.audit.Query(ctx, second.Token)
		require.NoError(t, err)
		last := records[len(records)-1]
		assert.Equal(t, entities.EventKindCancelled, last.Kind)
		require.NotNil(t, last.PositionBefore)
		assert.Equal(t, 2, *last.PositionBefore)
	})

	t.Run("in consultation cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)
		_, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		_, err = f.service.Cancel(ctx, p.Token, "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidTransition))
	})

	t.Run("audit failure restores the queue entry", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)

		f.audit.failAppend = true
		_, err := f.service.Cancel(ctx, p.Token, "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))

		assert.Equal(t, 1, f.service.DepartmentLoad("ER"))
		stored, getErr := f.patients.GetByToken(ctx, p.Token)
		require.NoError(t, getErr)
		assert.Equal(t, entities.PatientStatusWaiting, stored.Status)
	})
}

func TestQueueService_Promote(t *testing.T) {
	ctx := context.Background()

	t.Run("re-ranks a waiting patient", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ER", entities.PriorityClassNormal)
		f.now = f.now.Add(time.Minute)
		second := f.register(t, "ER", entities.PriorityClassNormal)

		promoted, err := f.service.Promote(ctx, second.Token, entities.PriorityClassEmergency)
		require.NoError(t, err)
		assert.Equal(t, entities.PriorityClassEmergency, promoted.Priority)

		next, err := f.service.NextPatient(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, second.Token, next.Token)

		records, err := f.audit.Query(ctx, second.Token)
		require.NoError(t, err)
		last := records[len(records)-1]
		assert.Equal(t, entities.EventKindPromoted, last.Kind)
		require.NotNil(t, last.PositionBefore)
		require.NotNil(t, last.PositionAfter)
		assert.Equal(t, 2, *last.PositionBefore)
		assert.Equal(t, 1, *last.PositionAfter)
	})

	t.Run("only waiting patients can be promoted", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)
		_, err := f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		_, err = f.service.Promote(ctx, p.Token, entities.PriorityClassEmergency)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotWaiting))
	})

	t.Run("invalid class", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "ER", entities.PriorityClassNormal)

		_, err := f.service.Promote(ctx, p.Token, "SEVERE")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("audit failure reverts the re-rank", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ER", entities.PriorityClassUrgent)
		f.now = f.now.Add(time.Minute)
		second := f.register(t, "ER", entities.PriorityClassNormal)

		f.audit.failAppend = true
		_, err := f.service.Promote(ctx, second.Token, entities.PriorityClassEmergency)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistenceUnavailable))

		next, peekErr := f.service.NextPatient(ctx, "ER")
		require.NoError(t, peekErr)
		assert.Equal(t, "ER-20250120-001", next.Token, "priority must be back to its old rank")

		stored, getErr := f.patients.GetByToken(ctx, second.Token)
		require.NoError(t, getErr)
		assert.Equal(t, entities.PriorityClassNormal, stored.Priority)
	})
}

func TestQueueService_AuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.register(t, "ER", entities.PriorityClassNormal)
	f.now = f.now.Add(5 * time.Minute)
	_, err := f.service.CallNext(ctx, "ER")
	require.NoError(t, err)
	f.now = f.now.Add(15 * time.Minute)
	_, err = f.service.FinishConsultation(ctx, p.Token)
	require.NoError(t, err)

	records, err := f.audit.Query(ctx, p.Token)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, entities.EventKindRegistered, records[0].Kind)
	assert.Equal(t, entities.EventKindConsultationStarted, records[1].Kind)
	assert.Equal(t, entities.EventKindConsultationCompleted, records[2].Kind)

	// Sequences are strictly increasing and timestamps chronological
	assert.Less(t, records[0].Sequence, records[1].Sequence)
	assert.Less(t, records[1].Sequence, records[2].Sequence)
	assert.False(t, records[1].Timestamp.Before(records[0].Timestamp))
	assert.False(t, records[2].Timestamp.Before(records[1].Timestamp))
}

func TestQueueService_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("next and current", func(t *testing.T) {
		f := newFixture(t)

		next, err := f.service.NextPatient(ctx, "ER")
		require.NoError(t, err)
		assert.Nil(t, next)

		current, err := f.service.CurrentPatient(ctx, "ER")
		require.NoError(t, err)
		assert.Nil(t, current)

		p := f.register(t, "ER", entities.PriorityClassNormal)
		next, err = f.service.NextPatient(ctx, "ER")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, p.Token, next.Token)

		_, err = f.service.CallNext(ctx, "ER")
		require.NoError(t, err)

		current, err = f.service.CurrentPatient(ctx, "ER")
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, p.Token, current.Token)
	})

	t.Run("snapshot in serving order", func(t *testing.T) {
		f := newFixture(t)

		f.register(t, "ER", entities.PriorityClassNormal)
		f.now = f.now.Add(time.Minute)
		f.register(t, "ER", entities.PriorityClassEmergency)

		snapshot, err := f.service.QueueSnapshot(ctx, "ER")
		require.NoError(t, err)
		require.Len(t, snapshot, 2)
		assert.Equal(t, "ER-20250120-002", snapshot[0].Token)
		assert.Equal(t, "ER-20250120-001", snapshot[1].Token)
	})
}

func TestQueueService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds departments when the catalog is empty", func(t *testing.T) {
		f := newFixture(t)
		empty := memory.NewDepartmentAdapter()

		generator := token.NewGenerator(empty)
		svc := services.NewQueueService(
			queue.NewEngine(), generator, stats.NewEstimator(),
			f.patients, empty, f.doctors, f.audit, f.statsRepo,
			nil, nil, retry.DefaultConfig(),
		)

		require.NoError(t, svc.Restore(ctx))

		depts, err := empty.List(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, depts)

		er, err := empty.GetByCode(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, "Emergency", er.Name)
	})

	t.Run("rebuilds the queue from waiting patients", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ER", entities.PriorityClassNormal)
		f.now = f.now.Add(time.Minute)
		emergency := f.register(t, "ER", entities.PriorityClassEmergency)

		// Fresh engine over the same store simulates a restart
		rebuilt := queue.NewEngine()
		generator := token.NewGenerator(f.departments).WithClock(func() time.Time { return f.now })
		svc := services.NewQueueService(
			rebuilt, generator, stats.NewEstimator(),
			f.patients, f.departments, f.doctors, f.audit, f.statsRepo,
			nil, nil, retry.DefaultConfig(),
		).WithClock(func() time.Time { return f.now })

		require.NoError(t, svc.Restore(ctx))
		assert.Equal(t, 2, rebuilt.Depth("ER"))

		called, err := svc.CallNext(ctx, "ER")
		require.NoError(t, err)
		assert.Equal(t, emergency.Token, called.Token)
	})
}

func TestQueueService_Purge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.register(t, "ER", entities.PriorityClassNormal)
	_, err := f.service.CallNext(ctx, "ER")
	require.NoError(t, err)
	_, err = f.service.FinishConsultation(ctx, p.Token)
	require.NoError(t, err)

	waiting := f.register(t, "ER", entities.PriorityClassNormal)

	patients, records, err := f.service.Purge(ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), patients)
	assert.Greater(t, records, int64(0))

	// Waiting patients survive the purge
	_, err = f.patients.GetByToken(ctx, waiting.Token)
	assert.NoError(t, err)
	_, err = f.patients.GetByToken(ctx, p.Token)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
