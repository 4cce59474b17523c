package refreshnotifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"notification-engine/internal/aggregator"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Refresher
// ==========================

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RefreshState(ctx context.Context, userID string) (aggregator.State, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(aggregator.State), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "provider-session",
		ElementId:          "Activity_RefreshNotifications",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, refresher Refresher) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Refresher:    refresher,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func createTestState() aggregator.State {
	return aggregator.State{
		UserID: "u1",
		Notifications: []models.Notification{
			{ID: "admin-approved-u1", Read: true},
			{ID: "application-job-1-u1"},
			{ID: "candidate-status-c1-1"},
		},
		RefreshedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func errorCode(t *testing.T, err error) errors.ErrorCode {
	t.Helper()
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	return stdErr.Code
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{CustomConfig: DefaultConfig(), Refresher: &MockRefresher{}},
		},
		{
			name:    "zero timeout",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1}, Refresher: &MockRefresher{}},
			wantErr: "timeout must be positive",
		},
		{
			name:    "zero max jobs",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, Timeout: time.Second}, Refresher: &MockRefresher{}},
			wantErr: "max_jobs_active must be positive",
		},
		{
			name:    "missing refresher",
			opts:    HandlerOptions{CustomConfig: DefaultConfig()},
			wantErr: "refresher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, h.GetTaskType())
			assert.True(t, h.IsEnabled())
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Workers: map[string]config.WorkerConfig{
			WorkerName: {Enabled: false, MaxJobsActive: 12, Timeout: 5000},
		},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(&config.Config{}, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockRefresher{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"valid", map[string]interface{}{"userId": "u1"}, false},
		{"missing user", map[string]interface{}{}, true},
		{"empty user", map[string]interface{}{"userId": ""}, true},
		{"wrong type", map[string]interface{}{"userId": 42}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", input.UserID)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	refresher := &MockRefresher{}
	refresher.On("RefreshState", mock.Anything, "u1").Return(createTestState(), nil)
	h := createTestHandler(t, refresher)

	out, err := h.Execute(context.Background(), &Input{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Unread)
	assert.False(t, out.LoadFailed)
	refresher.AssertExpectations(t)
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name     string
		state    aggregator.State
		err      error
		ctx      func() context.Context
		wantCode errors.ErrorCode
	}{
		{
			name:     "every source failed",
			state:    aggregator.State{UserID: "u1", LoadFailed: true},
			wantCode: errors.ErrCodeAggregationFailed,
		},
		{
			name:     "pass discarded",
			err:      aggregator.ErrPassDiscarded,
			wantCode: errors.ErrCodeAggregationFailed,
		},
		{
			name: "deadline reached",
			err:  context.DeadlineExceeded,
			ctx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), 0)
				cancel()
				return ctx
			},
			wantCode: errors.ErrCodePassTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &MockRefresher{}
			refresher.On("RefreshState", mock.Anything, "u1").Return(tt.state, tt.err)
			h := createTestHandler(t, refresher)

			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			out, err := h.Execute(ctx, &Input{UserID: "u1"})
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, errorCode(t, err))
		})
	}
}

func TestExtractErrorCode(t *testing.T) {
	assert.Equal(t, "AGGREGATION_FAILED", extractErrorCode(errors.NewAggregationFailedError("u1")))
	assert.Equal(t, "UNKNOWN_ERROR", extractErrorCode(assert.AnError))
}
