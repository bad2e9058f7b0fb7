package memory

import (
	"context"
	"sync"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
)

// AuditAdapter implements AuditRepository as an append-only slice. The
// sequence counter is the append position; records are never rewritten.
type AuditAdapter struct {
	mu      sync.Mutex
	records []*entities.AuditRecord
	nextSeq int64
}

// NewAuditAdapter creates an empty in-memory audit ledger
func NewAuditAdapter() *AuditAdapter {
	return &AuditAdapter{nextSeq: 1}
}

var _ repositories.AuditRepository = (*AuditAdapter)(nil)

// Append stores a record and assigns its monotonic sequence number
func (a *AuditAdapter) Append(ctx context.Context, record *entities.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	record.Sequence = a.nextSeq
	a.nextSeq++

	clone := *record
	a.records = append(a.records, &clone)
	return nil
}

// Query retrieves all records for a token in chronological order
func (a *AuditAdapter) Query(ctx context.Context, token string) ([]*entities.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*entities.AuditRecord
	for _, r := range a.records {
		if r.Token == token {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Dump retrieves records at or after since, ordered by sequence, with paging
func (a *AuditAdapter) Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var matched []*entities.AuditRecord
	for _, r := range a.records {
		if !r.Timestamp.Before(since) {
			matched = append(matched, r)
		}
	}

	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*entities.AuditRecord, len(matched))
	for i, r := range matched {
		clone := *r
		out[i] = &clone
	}
	return out, nil
}

// PurgeBefore deletes records older than the cutoff
func (a *AuditAdapter) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.records[:0]
	var removed int64
	for _, r := range a.records {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	a.records = kept
	return removed, nil
}
