package repositories

import (
	"context"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// StatisticsRepository defines the interface for wait statistic aggregates
type StatisticsRepository interface {
	// Upsert stores the running sums for a department
	Upsert(ctx context.Context, stat *entities.WaitStatistic) error

	// GetByDepartment retrieves the aggregate for a department
	GetByDepartment(ctx context.Context, department string) (*entities.WaitStatistic, error)

	// List retrieves all department aggregates
	List(ctx context.Context) ([]*entities.WaitStatistic, error)
}
