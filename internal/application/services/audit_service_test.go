package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagewell/hospital-queue/internal/adapters/memory"
	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

func TestAuditService_Dump(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAuditAdapter()
	svc := services.NewAuditService(ledger)

	base := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		require.NoError(t, ledger.Append(ctx, &entities.AuditRecord{
			Token:     "ER-20250120-001",
			Kind:      entities.EventKindRegistered,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("zero limit falls back to the default page size", func(t *testing.T) {
		records, err := svc.Dump(ctx, time.Time{}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, records, 100)
	})

	t.Run("pages with limit and offset", func(t *testing.T) {
		records, err := svc.Dump(ctx, time.Time{}, 10, 145)
		require.NoError(t, err)
		assert.Len(t, records, 5)
		assert.Equal(t, int64(146), records[0].Sequence)
	})

	t.Run("bounds below by timestamp", func(t *testing.T) {
		records, err := svc.Dump(ctx, base.Add(148*time.Minute), 0, 0)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

func TestAuditService_History(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAuditAdapter()
	svc := services.NewAuditService(ledger)

	require.NoError(t, ledger.Append(ctx, &entities.AuditRecord{Token: "ER-20250120-001", Kind: entities.EventKindRegistered}))
	require.NoError(t, ledger.Append(ctx, &entities.AuditRecord{Token: "ER-20250120-002", Kind: entities.EventKindRegistered}))
	require.NoError(t, ledger.Append(ctx, &entities.AuditRecord{Token: "ER-20250120-001", Kind: entities.EventKindCancelled}))

	records, err := svc.History(ctx, "ER-20250120-001")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entities.EventKindRegistered, records[0].Kind)
	assert.Equal(t, entities.EventKindCancelled, records[1].Kind)
}
