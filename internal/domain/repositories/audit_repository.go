package repositories

import (
	"context"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// AuditRepository defines the interface for the append-only transition ledger.
// Records are never mutated or deleted by the core; retention is the purge
// operation invoked by an external collaborator.
type AuditRepository interface {
	// Append stores a record and assigns its monotonic sequence number
	Append(ctx context.Context, record *entities.AuditRecord) error

	// Query retrieves all records for a token in chronological order
	Query(ctx context.Context, token string) ([]*entities.AuditRecord, error)

	// Dump retrieves records at or after since, ordered by sequence, with
	// limit/offset paging so the export collaborator can restart a read
	Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error)

	// PurgeBefore deletes records older than the cutoff and returns the
	// number of rows removed
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
