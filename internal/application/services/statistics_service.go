package services

import (
	"context"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/queue"
	"github.com/triagewell/hospital-queue/internal/stats"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// StatisticsService answers read-only load and wait-time questions over
// the live queue engine and the rolling per-department aggregates.
type StatisticsService struct {
	engine      *queue.Engine
	estimator   *stats.Estimator
	departments repositories.DepartmentRepository
	doctors     repositories.DoctorRepository
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(
	engine *queue.Engine,
	estimator *stats.Estimator,
	departmentRepo repositories.DepartmentRepository,
	doctorRepo repositories.DoctorRepository,
) *StatisticsService {
	return &StatisticsService{
		engine:      engine,
		estimator:   estimator,
		departments: departmentRepo,
		doctors:     doctorRepo,
	}
}

// DepartmentSummary is the per-department load report
type DepartmentSummary struct {
	Code             string         `json:"code"`
	Name             string         `json:"name"`
	Waiting          int            `json:"waiting"`
	WaitingByClass   map[string]int `json:"waiting_by_class"`
	ActiveDoctors    int            `json:"active_doctors"`
	AvailableDoctors int            `json:"available_doctors"`
	EstimatedWaitMin int            `json:"estimated_wait_minutes"`
	EstimateKnown    bool           `json:"estimate_known"`
	AverageWaitMin   int            `json:"average_wait_minutes"`
	CompletedCount   int64          `json:"completed_count"`
}

// Departments returns the department catalog
func (s *StatisticsService) Departments(ctx context.Context) ([]*entities.Department, error) {
	return s.departments.List(ctx)
}

// AverageWait returns the observed mean wait for a department. The second
// return is false until at least one consultation has completed.
func (s *StatisticsService) AverageWait(ctx context.Context, code string) (time.Duration, bool, error) {
	if _, err := s.department(ctx, code); err != nil {
		return 0, false, err
	}
	avg, known := s.estimator.AverageWait(code)
	return avg, known, nil
}

// EstimatedWait projects the wait a patient joining the department queue
// now should expect. The known flag is false when the department has no
// completed consultations to project from.
func (s *StatisticsService) EstimatedWait(ctx context.Context, code string) (time.Duration, bool, error) {
	dept, err := s.department(ctx, code)
	if err != nil {
		return 0, false, err
	}
	depth := s.engine.Depth(code)
	if est, known := s.estimator.Estimate(code, depth, dept.ActiveDoctors); known {
		return est, true, nil
	}

	doctors := dept.ActiveDoctors
	if doctors < 1 {
		doctors = 1
	}
	fallback := time.Duration(dept.DefaultConsultMinutes) * time.Minute * time.Duration(depth) / time.Duration(doctors)
	return fallback, false, nil
}

// DepartmentLoad returns the waiting count for one department
func (s *StatisticsService) DepartmentLoad(ctx context.Context, code string) (int, error) {
	if _, err := s.department(ctx, code); err != nil {
		return 0, err
	}
	return s.engine.Depth(code), nil
}

// Summary builds the load report across every department
func (s *StatisticsService) Summary(ctx context.Context) ([]*DepartmentSummary, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*DepartmentSummary, 0, len(depts))
	for _, dept := range depts {
		entries := s.engine.Snapshot(dept.Code)
		byClass := map[string]int{}
		for _, e := range entries {
			byClass[string(e.Priority)]++
		}

		available := 0
		if free, err := s.doctors.ListByDepartment(ctx, dept.Code, true); err == nil {
			available = len(free)
		}

		summary := &DepartmentSummary{
			Code:             dept.Code,
			Name:             dept.Name,
			Waiting:          len(entries),
			WaitingByClass:   byClass,
			ActiveDoctors:    dept.ActiveDoctors,
			AvailableDoctors: available,
		}

		if est, known := s.estimator.Estimate(dept.Code, len(entries), dept.ActiveDoctors); known {
			summary.EstimatedWaitMin = int(est.Minutes())
			summary.EstimateKnown = true
		}
		if avg, known := s.estimator.AverageWait(dept.Code); known {
			summary.AverageWaitMin = int(avg.Minutes())
		}
		if agg, ok := s.estimator.Snapshot(dept.Code); ok {
			summary.CompletedCount = agg.CompletedCount
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *StatisticsService) department(ctx context.Context, code string) (*entities.Department, error) {
	dept, err := s.departments.GetByCode(ctx, code)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewInvalidDepartmentError(code)
		}
		return nil, err
	}
	return dept, nil
}
