package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jd0713/schadenfreude/internal/models"
)

// StatsReader - агрегированная статистика, цены и алерты
type StatsReader interface {
	GetStats(ctx context.Context) (*models.MonitorStats, error)
	GetPrices(ctx context.Context) (map[string]float64, error)
	GetRecentAlerts(limit int) ([]models.LiquidationAlert, error)
}

// StatsHandler обрабатывает HTTP запросы для статистики мониторинга.
//
// Endpoints:
// - GET /api/v1/stats - агрегированная статистика по позициям
// - GET /api/v1/prices - текущие mid-цены всех инструментов
// - GET /api/v1/alerts?limit=50 - последние алерты ликвидации
type StatsHandler struct {
	stats StatsReader
}

// NewStatsHandler создает новый StatsHandler с внедрением зависимостей.
func NewStatsHandler(stats StatsReader) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats возвращает агрегированную статистику мониторинга.
//
// GET /api/v1/stats
//
// Response 200 OK:
//
//	{
//	  "total_entities": 120,
//	  "total_positions": 340,
//	  "tiers": {"critical": 3, "danger": 12, "warning": 40, "safe": 285},
//	  "total_position_value": 1250000000,
//	  "total_unrealized_pnl": -4500000,
//	  "last_sync_at": "2025-06-01T12:00:00Z"
//	}
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusInternalServerError, "stats service not initialized", "")
		return
	}

	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetPrices возвращает текущие mid-цены всех инструментов.
//
// GET /api/v1/prices
//
// Response 200 OK:
//
//	{"BTC": 94200.5, "ETH": 3310.2, ...}
func (h *StatsHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusInternalServerError, "stats service not initialized", "")
		return
	}

	prices, err := h.stats.GetPrices(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get prices", err.Error())
		return
	}

	if prices == nil {
		prices = map[string]float64{}
	}

	respondJSON(w, http.StatusOK, prices)
}

// GetAlerts возвращает последние алерты ликвидации.
//
// GET /api/v1/alerts?limit=50
//
// Query Parameters:
// - limit (optional): количество алертов (по умолчанию 50, максимум 500)
//
// Response 200 OK:
//
//	[
//	  {
//	    "id": 7,
//	    "position_id": 42,
//	    "alert_type": "critical",
//	    "distance_to_liquidation": 2.5,
//	    "current_price": 94200,
//	    "created_at": "2025-06-01T12:00:00Z"
//	  }
//	]
func (h *StatsHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusInternalServerError, "stats service not initialized", "")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > 500 {
			limit = 500
		}
	}

	alerts, err := h.stats.GetRecentAlerts(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get alerts", err.Error())
		return
	}

	if alerts == nil {
		alerts = []models.LiquidationAlert{}
	}

	respondJSON(w, http.StatusOK, alerts)
}
