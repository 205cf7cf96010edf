package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/monitor"
)

// ============ MonitorHandler Tests ============

func TestMonitorHandler_TriggerSync(t *testing.T) {
	t.Run("runs sync and returns result", func(t *testing.T) {
		mockSync := &mockSyncTrigger{
			result: &models.SyncResult{Success: true, PositionsUpdated: 42},
		}
		handler := NewMonitorHandler(mockSync, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.TriggerSync(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if mockSync.calls != 1 {
			t.Errorf("expected 1 sync call, got %d", mockSync.calls)
		}

		var response models.SyncResult
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !response.Success || response.PositionsUpdated != 42 {
			t.Errorf("unexpected result: %+v", response)
		}
	})

	t.Run("returns 502 when sync fails", func(t *testing.T) {
		handler := NewMonitorHandler(&mockSyncTrigger{err: ErrMockDatabase}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.TriggerSync(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, w.Code)
		}
	})

	t.Run("returns 500 when syncer is nil", func(t *testing.T) {
		handler := NewMonitorHandler(nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.TriggerSync(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestMonitorHandler_GetSchedulerStats(t *testing.T) {
	t.Run("returns scheduler stats", func(t *testing.T) {
		mockSched := &mockSchedulerStats{
			stats: monitor.SchedulerStats{
				TrackedPositions: 340,
				Tiers:            models.TierCounts{Critical: 3, Safe: 337},
				QueueSize:        340,
				LastFullSync:     time.Now(),
			},
		}
		handler := NewMonitorHandler(nil, mockSched, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/monitor", nil)
		w := httptest.NewRecorder()

		handler.GetSchedulerStats(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response monitor.SchedulerStats
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.TrackedPositions != 340 || response.Tiers.Critical != 3 {
			t.Errorf("unexpected stats: %+v", response)
		}
	})
}

func TestMonitorHandler_GetHealth(t *testing.T) {
	t.Run("returns 200 when all components up", func(t *testing.T) {
		mockHealth := &mockHealthReporter{
			report: models.HealthReport{
				Status: models.StatusUp,
				Components: []models.ComponentHealth{
					{Name: "database", Status: models.StatusUp},
				},
			},
		}
		handler := NewMonitorHandler(nil, nil, mockHealth)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.GetHealth(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("returns 200 when degraded", func(t *testing.T) {
		mockHealth := &mockHealthReporter{
			report: models.HealthReport{Status: models.StatusDegraded},
		}
		handler := NewMonitorHandler(nil, nil, mockHealth)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.GetHealth(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("returns 503 when down", func(t *testing.T) {
		mockHealth := &mockHealthReporter{
			report: models.HealthReport{Status: models.StatusDown},
		}
		handler := NewMonitorHandler(nil, nil, mockHealth)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.GetHealth(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})
}
