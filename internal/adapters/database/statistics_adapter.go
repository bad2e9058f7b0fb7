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

// StatisticsAdapter implements the StatisticsRepository interface. Duration
// sums are stored as nanoseconds in BIGINT columns.
type StatisticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStatisticsAdapter creates a new statistics adapter
func NewStatisticsAdapter(client *postgres.Client) repositories.StatisticsRepository {
	return &StatisticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert stores the running sums for a department
func (a *StatisticsAdapter) Upsert(ctx context.Context, stat *entities.WaitStatistic) error {
	query := `
		INSERT INTO wait_statistics (department, completed_count, wait_sum_ns, consult_sum_ns)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (department) DO UPDATE SET
			completed_count = EXCLUDED.completed_count,
			wait_sum_ns = EXCLUDED.wait_sum_ns,
			consult_sum_ns = EXCLUDED.consult_sum_ns
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		stat.Department,
		stat.CompletedCount,
		int64(stat.WaitSum),
		int64(stat.ConsultSum),
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert wait statistics", err)
	}

	return nil
}

// GetByDepartment retrieves the aggregate for a department
func (a *StatisticsAdapter) GetByDepartment(ctx context.Context, department string) (*entities.WaitStatistic, error) {
	query, args, err := a.db.Select("department", "completed_count", "wait_sum_ns", "consult_sum_ns").
		From("wait_statistics").
		Where(goqu.Ex{"department": department}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	stat, err := scanStatistic(a.client.DB().QueryRowContext(ctx, query, args...).Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no wait statistics for department %s", department))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get wait statistics", err)
	}

	return stat, nil
}

// List retrieves all department aggregates
func (a *StatisticsAdapter) List(ctx context.Context) ([]*entities.WaitStatistic, error) {
	query, args, err := a.db.Select("department", "completed_count", "wait_sum_ns", "consult_sum_ns").
		From("wait_statistics").
		Order(goqu.I("department").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list wait statistics", err)
	}
	defer rows.Close()

	var stats []*entities.WaitStatistic
	for rows.Next() {
		stat, err := scanStatistic(rows.Scan)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan wait statistics", err)
		}
		stats = append(stats, stat)
	}

	return stats, nil
}

func scanStatistic(scan func(dest ...interface{}) error) (*entities.WaitStatistic, error) {
	stat := &entities.WaitStatistic{}
	var waitSum, consultSum int64

	err := scan(&stat.Department, &stat.CompletedCount, &waitSum, &consultSum)
	if err != nil {
		return nil, err
	}

	stat.WaitSum = time.Duration(waitSum)
	stat.ConsultSum = time.Duration(consultSum)
	return stat, nil
}
