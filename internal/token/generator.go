// Package token issues the unique patient identifiers of shape
// DEPT-YYYYMMDD-SEQ, e.g. ER-20250120-001.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

const dayFormat = "20060102"

// Generator issues collision-free tokens backed by the department's durable
// per-day sequence. The sequence increment is persisted before the token is
// returned, so a crash in between burns a number instead of duplicating one.
type Generator struct {
	departments repositories.DepartmentRepository
	now         func() time.Time
}

// NewGenerator creates a new token generator
func NewGenerator(departments repositories.DepartmentRepository) *Generator {
	return &Generator{
		departments: departments,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests and day-rollover checks.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Issue returns the next token for a department. The numeric suffix is
// zero-padded to three digits and grows naturally past 999.
func (g *Generator) Issue(ctx context.Context, departmentCode string) (string, error) {
	dept, err := g.departments.GetByCode(ctx, departmentCode)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return "", apperrors.NewInvalidDepartmentError(departmentCode)
		}
		return "", apperrors.NewPersistenceUnavailableError("failed to look up department", err)
	}

	day := g.now().Format(dayFormat)
	seq, err := g.departments.NextSequence(ctx, dept.Code, day)
	if err != nil {
		return "", apperrors.NewPersistenceUnavailableError("failed to advance token sequence", err)
	}

	return fmt.Sprintf("%s-%s-%03d", dept.Code, day, seq), nil
}
