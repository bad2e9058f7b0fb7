package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/infrastructure/clients/postgres"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

var auditColumns = []interface{}{
	"sequence", "token", "kind", "from_status", "to_status",
	"position_before", "position_after", "actor", "timestamp",
}

// AuditAdapter implements the AuditRepository interface. The sequence
// column is a BIGSERIAL, so ordering is assigned by the database and
// survives restarts.
type AuditAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAuditAdapter creates a new audit adapter
func NewAuditAdapter(client *postgres.Client) repositories.AuditRepository {
	return &AuditAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append stores a record and assigns its monotonic sequence number
func (a *AuditAdapter) Append(ctx context.Context, record *entities.AuditRecord) error {
	query := `
		INSERT INTO audit_records (token, kind, from_status, to_status, position_before, position_after, actor, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING sequence
	`

	err := a.client.DB().QueryRowContext(ctx, query,
		record.Token,
		record.Kind,
		record.FromStatus,
		record.ToStatus,
		record.PositionBefore,
		record.PositionAfter,
		record.Actor,
		record.Timestamp,
	).Scan(&record.Sequence)
	if err != nil {
		return apperrors.NewInternalError("failed to append audit record", err)
	}

	return nil
}

// Query retrieves all records for a token in chronological order
func (a *AuditAdapter) Query(ctx context.Context, token string) ([]*entities.AuditRecord, error) {
	query, args, err := a.db.Select(auditColumns...).
		From("audit_records").
		Where(goqu.Ex{"token": token}).
		Order(goqu.I("sequence").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryRecords(ctx, query, args)
}

// Dump retrieves records at or after since, ordered by sequence
func (a *AuditAdapter) Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error) {
	ds := a.db.Select(auditColumns...).From("audit_records")

	if !since.IsZero() {
		ds = ds.Where(goqu.C("timestamp").Gte(since))
	}

	ds = ds.Order(goqu.I("sequence").Asc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build dump query", err)
	}

	return a.queryRecords(ctx, query, args)
}

// PurgeBefore deletes records older than the cutoff
func (a *AuditAdapter) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := a.db.Delete("audit_records").
		Where(goqu.C("timestamp").Lt(cutoff)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build purge query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to purge audit records", err)
	}

	return result.RowsAffected()
}

func (a *AuditAdapter) queryRecords(ctx context.Context, query string, args []interface{}) ([]*entities.AuditRecord, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query audit records", err)
	}
	defer rows.Close()

	var records []*entities.AuditRecord
	for rows.Next() {
		record := &entities.AuditRecord{}
		var fromStatus, actor sql.NullString
		var positionBefore, positionAfter sql.NullInt64

		err := rows.Scan(
			&record.Sequence,
			&record.Token,
			&record.Kind,
			&fromStatus,
			&record.ToStatus,
			&positionBefore,
			&positionAfter,
			&actor,
			&record.Timestamp,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan audit record", err)
		}

		record.FromStatus = entities.PatientStatus(fromStatus.String)
		if positionBefore.Valid {
			v := int(positionBefore.Int64)
			record.PositionBefore = &v
		}
		if positionAfter.Valid {
			v := int(positionAfter.Int64)
			record.PositionAfter = &v
		}
		record.Actor = actor.String

		records = append(records, record)
	}

	return records, nil
}
