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

// StatisticsAdapter implements StatisticsRepository over a mutex-guarded map
type StatisticsAdapter struct {
	mu    sync.Mutex
	stats map[string]*entities.WaitStatistic
}

// NewStatisticsAdapter creates an empty in-memory statistics store
func NewStatisticsAdapter() *StatisticsAdapter {
	return &StatisticsAdapter{stats: make(map[string]*entities.WaitStatistic)}
}

var _ repositories.StatisticsRepository = (*StatisticsAdapter)(nil)

// Upsert stores the running sums for a department
func (a *StatisticsAdapter) Upsert(ctx context.Context, stat *entities.WaitStatistic) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	clone := *stat
	a.stats[stat.Department] = &clone
	return nil
}

// GetByDepartment retrieves the aggregate for a department
func (a *StatisticsAdapter) GetByDepartment(ctx context.Context, department string) (*entities.WaitStatistic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, exists := a.stats[department]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("statistics for department %s not found", department))
	}
	clone := *s
	return &clone, nil
}

// List retrieves all department aggregates ordered by department code
func (a *StatisticsAdapter) List(ctx context.Context) ([]*entities.WaitStatistic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*entities.WaitStatistic, 0, len(a.stats))
	for _, s := range a.stats {
		clone := *s
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out, nil
}
