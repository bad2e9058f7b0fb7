package services

import (
	"context"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
)

const defaultDumpLimit = 100

// AuditService exposes read access to the append-only transition ledger
type AuditService struct {
	audit repositories.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo repositories.AuditRepository) *AuditService {
	return &AuditService{audit: auditRepo}
}

// History returns every recorded transition for a token in chronological order
func (s *AuditService) History(ctx context.Context, token string) ([]*entities.AuditRecord, error) {
	return s.audit.Query(ctx, token)
}

// Dump returns a page of the ledger, oldest first, optionally bounded below
// by a timestamp. A zero limit falls back to the default page size.
func (s *AuditService) Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultDumpLimit
	}
	return s.audit.Dump(ctx, since, limit, offset)
}
