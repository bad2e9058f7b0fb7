// Package stats maintains per-department wait statistics and derives wait
// estimates from them. Only running sums are kept, so RecordCompletion and
// Estimate are both O(1).
package stats

import (
	"sync"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// Estimator aggregates completed-consultation durations per department
type Estimator struct {
	mu     sync.RWMutex
	byDept map[string]*entities.WaitStatistic
}

// NewEstimator creates an empty estimator
func NewEstimator() *Estimator {
	return &Estimator{
		byDept: make(map[string]*entities.WaitStatistic),
	}
}

// Seed loads previously persisted aggregates, replacing any in-memory state.
// Called once at startup with the statistics repository's contents.
func (e *Estimator) Seed(stats []*entities.WaitStatistic) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.byDept = make(map[string]*entities.WaitStatistic, len(stats))
	for _, s := range stats {
		clone := *s
		e.byDept[s.Department] = &clone
	}
}

// RecordCompletion folds one completed consultation into the department's
// running sums and returns a copy of the updated aggregate for persistence.
// Must be called exactly once per completion.
func (e *Estimator) RecordCompletion(department string, wait, consult time.Duration) *entities.WaitStatistic {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.byDept[department]
	if s == nil {
		s = &entities.WaitStatistic{Department: department}
		e.byDept[department] = s
	}
	s.CompletedCount++
	s.WaitSum += wait
	s.ConsultSum += consult

	clone := *s
	return &clone
}

// Estimate derives the expected wait for a department from the historical
// average consultation duration, the current queue depth and the number of
// active doctors. The boolean is false when no consultation has completed
// yet, in which case the estimate is unknown.
func (e *Estimator) Estimate(department string, queueDepth, activeDoctors int) (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	avg, ok := e.byDept[department].AverageConsult()
	if !ok {
		return 0, false
	}
	if activeDoctors < 1 {
		activeDoctors = 1
	}

	est := avg * time.Duration(queueDepth) / time.Duration(activeDoctors)
	if est < 0 {
		est = 0
	}
	return est, true
}

// AverageWait returns the historical mean wait for a department, false when
// no sample exists yet.
func (e *Estimator) AverageWait(department string) (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.byDept[department].AverageWait()
}

// Snapshot returns a copy of a department's aggregate, false when absent
func (e *Estimator) Snapshot(department string) (*entities.WaitStatistic, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.byDept[department]
	if s == nil {
		return nil, false
	}
	clone := *s
	return &clone, true
}
