package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/triagewell/hospital-queue/internal/api/handlers"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
)

// MockAuditService defines the mock audit ledger reads
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) History(ctx context.Context, token string) ([]*entities.AuditRecord, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditRecord), args.Error(1)
}

func (m *MockAuditService) Dump(ctx context.Context, since time.Time, limit, offset int) ([]*entities.AuditRecord, error) {
	args := m.Called(ctx, since, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditRecord), args.Error(1)
}

// MockPurgeService defines the mock retention operation
type MockPurgeService struct {
	mock.Mock
}

func (m *MockPurgeService) Purge(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func TestAuditHandler_GetHistory(t *testing.T) {
	mockAudit := new(MockAuditService)
	handler := handlers.NewAuditHandler(mockAudit, new(MockPurgeService), 30)

	req := httptest.NewRequest("GET", "/api/patients/ER-20250120-001/history", nil)
	req.SetPathValue("token", "ER-20250120-001")
	w := httptest.NewRecorder()

	mockAudit.On("History", mock.Anything, "ER-20250120-001").Return([]*entities.AuditRecord{
		{Sequence: 1, Token: "ER-20250120-001", Kind: entities.EventKindRegistered},
		{Sequence: 2, Token: "ER-20250120-001", Kind: entities.EventKindConsultationStarted},
	}, nil)

	handler.GetHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Token   string                  `json:"token"`
		Records []*entities.AuditRecord `json:"records"`
		Count   int                     `json:"count"`
	}
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, entities.EventKindRegistered, payload.Records[0].Kind)
	mockAudit.AssertExpectations(t)
}

func TestAuditHandler_DumpRecords(t *testing.T) {
	t.Run("passes paging and since through", func(t *testing.T) {
		mockAudit := new(MockAuditService)
		handler := handlers.NewAuditHandler(mockAudit, new(MockPurgeService), 30)

		since := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
		req := httptest.NewRequest("GET", "/api/audit/dump?since=2025-01-20T00:00:00Z&limit=10&offset=5", nil)
		w := httptest.NewRecorder()

		mockAudit.On("Dump", mock.Anything, since, 10, 5).Return([]*entities.AuditRecord{}, nil)

		handler.DumpRecords(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockAudit.AssertExpectations(t)
	})

	t.Run("rejects a malformed since", func(t *testing.T) {
		handler := handlers.NewAuditHandler(new(MockAuditService), new(MockPurgeService), 30)

		req := httptest.NewRequest("GET", "/api/audit/dump?since=yesterday", nil)
		w := httptest.NewRecorder()

		handler.DumpRecords(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuditHandler_PurgeOldRecords(t *testing.T) {
	t.Run("purges with the configured retention", func(t *testing.T) {
		mockPurge := new(MockPurgeService)
		handler := handlers.NewAuditHandler(new(MockAuditService), mockPurge, 30)

		req := httptest.NewRequest("POST", "/api/admin/purge", nil)
		w := httptest.NewRecorder()

		mockPurge.On("Purge", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
			expected := time.Now().AddDate(0, 0, -30)
			return cutoff.Sub(expected) < time.Minute && expected.Sub(cutoff) < time.Minute
		})).Return(int64(12), int64(40), nil)

		handler.PurgeOldRecords(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
		assert.Equal(t, float64(12), payload["patients_purged"])
		assert.Equal(t, float64(40), payload["records_purged"])
		mockPurge.AssertExpectations(t)
	})

	t.Run("rejects a non-positive days override", func(t *testing.T) {
		handler := handlers.NewAuditHandler(new(MockAuditService), new(MockPurgeService), 30)

		req := httptest.NewRequest("POST", "/api/admin/purge?days=0", nil)
		w := httptest.NewRecorder()

		handler.PurgeOldRecords(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
