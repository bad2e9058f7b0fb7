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
	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/entities"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// MockDepartmentQueueService defines the mock department queue reads
type MockDepartmentQueueService struct {
	mock.Mock
}

func (m *MockDepartmentQueueService) CallNext(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	args := m.Called(ctx, departmentCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockDepartmentQueueService) NextPatient(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	args := m.Called(ctx, departmentCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockDepartmentQueueService) CurrentPatient(ctx context.Context, departmentCode string) (*entities.Patient, error) {
	args := m.Called(ctx, departmentCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockDepartmentQueueService) QueueSnapshot(ctx context.Context, departmentCode string) ([]*entities.Patient, error) {
	args := m.Called(ctx, departmentCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Patient), args.Error(1)
}

// MockStatisticsService defines the mock load and wait-time reads
type MockStatisticsService struct {
	mock.Mock
}

func (m *MockStatisticsService) Departments(ctx context.Context) ([]*entities.Department, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Department), args.Error(1)
}

func (m *MockStatisticsService) EstimatedWait(ctx context.Context, code string) (time.Duration, bool, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(time.Duration), args.Bool(1), args.Error(2)
}

func (m *MockStatisticsService) AverageWait(ctx context.Context, code string) (time.Duration, bool, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(time.Duration), args.Bool(1), args.Error(2)
}

func (m *MockStatisticsService) DepartmentLoad(ctx context.Context, code string) (int, error) {
	args := m.Called(ctx, code)
	return args.Int(0), args.Error(1)
}

func (m *MockStatisticsService) Summary(ctx context.Context) ([]*services.DepartmentSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.DepartmentSummary), args.Error(1)
}

func TestDepartmentHandler_ListDepartments(t *testing.T) {
	mockQueue := new(MockDepartmentQueueService)
	mockStats := new(MockStatisticsService)
	handler := handlers.NewDepartmentHandler(mockQueue, mockStats)

	req := httptest.NewRequest("GET", "/api/departments", nil)
	w := httptest.NewRecorder()

	mockStats.On("Summary", mock.Anything).Return([]*services.DepartmentSummary{
		{Code: "ER", Name: "Emergency", Waiting: 3},
		{Code: "GM", Name: "General Medicine", Waiting: 0},
	}, nil)

	handler.ListDepartments(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Departments []*services.DepartmentSummary `json:"departments"`
		Count       int                           `json:"count"`
	}
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "ER", payload.Departments[0].Code)
	mockStats.AssertExpectations(t)
}

func TestDepartmentHandler_GetQueue(t *testing.T) {
	t.Run("returns the queue in serving order", func(t *testing.T) {
		mockQueue := new(MockDepartmentQueueService)
		mockStats := new(MockStatisticsService)
		handler := handlers.NewDepartmentHandler(mockQueue, mockStats)

		req := httptest.NewRequest("GET", "/api/departments/ER/queue", nil)
		req.SetPathValue("code", "ER")
		w := httptest.NewRecorder()

		mockQueue.On("QueueSnapshot", mock.Anything, "ER").Return([]*entities.Patient{
			{Token: "ER-20250120-003", Priority: entities.PriorityClassEmergency},
			{Token: "ER-20250120-001", Priority: entities.PriorityClassNormal},
		}, nil)

		handler.GetQueue(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var payload struct {
			Department string              `json:"department"`
			Patients   []*entities.Patient `json:"patients"`
			Count      int                 `json:"count"`
		}
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
		assert.Equal(t, 2, payload.Count)
		assert.Equal(t, "ER-20250120-003", payload.Patients[0].Token)
		mockQueue.AssertExpectations(t)
	})

	t.Run("missing code returns 400", func(t *testing.T) {
		handler := handlers.NewDepartmentHandler(new(MockDepartmentQueueService), new(MockStatisticsService))

		req := httptest.NewRequest("GET", "/api/departments//queue", nil)
		w := httptest.NewRecorder()

		handler.GetQueue(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDepartmentHandler_CallNext(t *testing.T) {
	t.Run("calls the next patient", func(t *testing.T) {
		mockQueue := new(MockDepartmentQueueService)
		handler := handlers.NewDepartmentHandler(mockQueue, new(MockStatisticsService))

		req := httptest.NewRequest("POST", "/api/departments/ER/call", nil)
		req.SetPathValue("code", "ER")
		w := httptest.NewRecorder()

		mockQueue.On("CallNext", mock.Anything, "ER").Return(&entities.Patient{
			Token:  "ER-20250120-001",
			Status: entities.PatientStatusInConsultation,
		}, nil)

		handler.CallNext(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockQueue.AssertExpectations(t)
	})

	t.Run("empty queue returns 404", func(t *testing.T) {
		mockQueue := new(MockDepartmentQueueService)
		handler := handlers.NewDepartmentHandler(mockQueue, new(MockStatisticsService))

		req := httptest.NewRequest("POST", "/api/departments/ER/call", nil)
		req.SetPathValue("code", "ER")
		w := httptest.NewRecorder()

		mockQueue.On("CallNext", mock.Anything, "ER").
			Return(nil, apperrors.NewEmptyQueueError("ER"))

		handler.CallNext(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDepartmentHandler_GetNext(t *testing.T) {
	t.Run("empty queue yields a null patient", func(t *testing.T) {
		mockQueue := new(MockDepartmentQueueService)
		handler := handlers.NewDepartmentHandler(mockQueue, new(MockStatisticsService))

		req := httptest.NewRequest("GET", "/api/departments/ER/next", nil)
		req.SetPathValue("code", "ER")
		w := httptest.NewRecorder()

		mockQueue.On("NextPatient", mock.Anything, "ER").Return(nil, nil)

		handler.GetNext(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
		assert.Nil(t, payload["patient"])
	})
}

func TestDepartmentHandler_GetEstimate(t *testing.T) {
	t.Run("returns estimate and load", func(t *testing.T) {
		mockStats := new(MockStatisticsService)
		handler := handlers.NewDepartmentHandler(new(MockDepartmentQueueService), mockStats)

		req := httptest.NewRequest("GET", "/api/departments/ER/estimate", nil)
		req.SetPathValue("code", "ER")
		w := httptest.NewRecorder()

		mockStats.On("EstimatedWait", mock.Anything, "ER").Return(45*time.Minute, true, nil)
		mockStats.On("DepartmentLoad", mock.Anything, "ER").Return(3, nil)

		handler.GetEstimate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
		assert.Equal(t, float64(45), payload["estimated_wait_minutes"])
		assert.Equal(t, float64(3), payload["waiting"])
		assert.Equal(t, true, payload["estimate_known"])
		mockStats.AssertExpectations(t)
	})

	t.Run("unknown department returns 404", func(t *testing.T) {
		mockStats := new(MockStatisticsService)
		handler := handlers.NewDepartmentHandler(new(MockDepartmentQueueService), mockStats)

		req := httptest.NewRequest("GET", "/api/departments/XX/estimate", nil)
		req.SetPathValue("code", "XX")
		w := httptest.NewRecorder()

		mockStats.On("EstimatedWait", mock.Anything, "XX").
			Return(time.Duration(0), false, apperrors.NewInvalidDepartmentError("XX"))

		handler.GetEstimate(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
