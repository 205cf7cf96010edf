package handlers

import (
	"context"
	"net/http"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/monitor"
)

// SyncTrigger - запуск полной синхронизации по запросу
type SyncTrigger interface {
	FetchAll(ctx context.Context) (*models.SyncResult, []models.Position, error)
}

// SchedulerStatsProvider - снимок состояния планировщика
type SchedulerStatsProvider interface {
	Stats() monitor.SchedulerStats
}

// HealthReporter - сводное состояние компонентов системы
type HealthReporter interface {
	Report() models.HealthReport
}

// MonitorHandler обрабатывает служебные запросы мониторинга.
//
// Endpoints:
// - POST /api/v1/sync - принудительная полная синхронизация
// - GET /api/v1/monitor/stats - состояние планировщика
// - GET /api/v1/monitor/health - состояние компонентов
type MonitorHandler struct {
	syncer    SyncTrigger
	scheduler SchedulerStatsProvider
	health    HealthReporter
}

// NewMonitorHandler создает новый MonitorHandler с внедрением зависимостей.
func NewMonitorHandler(syncer SyncTrigger, scheduler SchedulerStatsProvider, health HealthReporter) *MonitorHandler {
	return &MonitorHandler{
		syncer:    syncer,
		scheduler: scheduler,
		health:    health,
	}
}

// TriggerSync запускает полную синхронизацию немедленно.
//
// POST /api/v1/sync
//
// Синхронизация выполняется в рамках запроса: ответ приходит после
// завершения и содержит результат.
//
// Response 200 OK:
//
//	{"success": true, "positions_updated": 340, "positions_failed": 0}
//
// Response 502 Bad Gateway: синхронизация не удалась целиком
func (h *MonitorHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respondError(w, http.StatusInternalServerError, "sync service not initialized", "")
		return
	}

	result, _, err := h.syncer.FetchAll(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "sync failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSchedulerStats возвращает снимок состояния планировщика.
//
// GET /api/v1/monitor/stats
//
// Response 200 OK:
//
//	{
//	  "tracked_positions": 340,
//	  "tiers": {"critical": 3, "danger": 12, "warning": 40, "safe": 285},
//	  "queue_size": 340,
//	  "last_full_sync": "2025-06-01T12:00:00Z",
//	  "cycles_total": 1200,
//	  "cycles_failed": 4,
//	  "consecutive_failures": 0
//	}
func (h *MonitorHandler) GetSchedulerStats(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusInternalServerError, "scheduler not initialized", "")
		return
	}

	respondJSON(w, http.StatusOK, h.scheduler.Stats())
}

// GetHealth возвращает состояние компонентов системы.
//
// GET /api/v1/monitor/health (также доступен как корневой /health)
//
// Response 200 OK: общий статус up или degraded
// Response 503 Service Unavailable: хотя бы один компонент down
//
//	{
//	  "status": "up",
//	  "components": [
//	    {"name": "hyperliquid-private-api", "status": "up", "consecutive_failures": 0},
//	    {"name": "database", "status": "up", "consecutive_failures": 0}
//	  ],
//	  "checked_at": "2025-06-01T12:00:00Z"
//	}
func (h *MonitorHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respondError(w, http.StatusInternalServerError, "health monitor not initialized", "")
		return
	}

	report := h.health.Report()

	status := http.StatusOK
	if report.Status == models.StatusDown {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, report)
}
