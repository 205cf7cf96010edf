package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/risk"
)

// PositionReader - чтение позиций с обогащением текущей ценой
type PositionReader interface {
	GetPositions(ctx context.Context, filters models.PositionFilters) ([]models.Position, error)
	GetPositionsByAddress(ctx context.Context, address string) ([]models.Position, error)
}

// RiskyPositionReader - позиции в опасной зоне со свежими ценами
type RiskyPositionReader interface {
	GetRiskyPositions(ctx context.Context, minTier risk.Tier) ([]models.Position, error)
}

// PositionHandler обрабатывает HTTP запросы для позиций.
//
// Endpoints:
// - GET /api/v1/positions - список позиций с фильтрами и сортировкой
// - GET /api/v1/positions/risky - позиции в опасной зоне
// - GET /api/v1/positions/{address} - позиции одного адреса
//
// Каждый ответ содержит позиции, обогащённые на момент запроса:
// текущая цена, дистанция до ликвидации, тир риска, нереализованный PNL.
type PositionHandler struct {
	positions PositionReader
	risky     RiskyPositionReader
}

// NewPositionHandler создает новый PositionHandler с внедрением зависимостей.
func NewPositionHandler(positions PositionReader, risky RiskyPositionReader) *PositionHandler {
	return &PositionHandler{positions: positions, risky: risky}
}

// GetPositions возвращает все отслеживаемые позиции.
//
// GET /api/v1/positions?risk_level=danger&coin=BTC&sort_by=position_value&sort_order=desc
//
// Query Parameters:
// - risk_level (optional): минимальный тир риска (critical, danger, warning, safe).
//   Возвращаются позиции этого тира и опаснее
// - coin (optional): фильтр по инструменту
// - sort_by (optional): liquidation_distance (default), position_value, unrealized_pnl
// - sort_order (optional): asc (default), desc
//
// Response 200 OK:
//
//	[
//	  {
//	    "address": "0x...",
//	    "entity_name": "Whale Fund",
//	    "coin": "BTC",
//	    "entry_price": 95000,
//	    "position_size": 12.5,
//	    "leverage": 20,
//	    "liquidation_price": 91500,
//	    "current_price": 94200,
//	    "liquidation_distance": 2.87,
//	    "risk_tier": "critical",
//	    "unrealized_pnl": -10000
//	  }
//	]
//
// Response 400 Bad Request:
//
//	{"error": "invalid tier", "details": "..."}
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		respondError(w, http.StatusInternalServerError, "position service not initialized", "")
		return
	}

	query := r.URL.Query()

	filters := models.PositionFilters{
		RiskTier:  strings.ToLower(query.Get("risk_level")),
		Coin:      strings.ToUpper(query.Get("coin")),
		SortBy:    query.Get("sort_by"),
		SortOrder: query.Get("sort_order"),
	}

	if filters.RiskTier != "" && !risk.Tier(filters.RiskTier).Valid() {
		respondError(w, http.StatusBadRequest, "invalid risk_level",
			"valid levels: critical, danger, warning, safe")
		return
	}

	if filters.SortBy != "" && !validSortField(filters.SortBy) {
		respondError(w, http.StatusBadRequest, "invalid sort_by",
			"valid fields: liquidation_distance, position_value, unrealized_pnl")
		return
	}

	positions, err := h.positions.GetPositions(r.Context(), filters)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get positions", err.Error())
		return
	}

	// Пустой список отдаём как [], а не null
	if positions == nil {
		positions = []models.Position{}
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetRiskyPositions возвращает позиции в опасной зоне.
//
// GET /api/v1/positions/risky?min_risk_level=danger
//
// Query Parameters:
// - min_risk_level (optional): минимальный тир (по умолчанию warning).
//   Возвращаются позиции этого тира и опаснее, по возрастанию
//   дистанции до ликвидации
//
// Response 200 OK: массив позиций
// Response 400 Bad Request: некорректный тир
func (h *PositionHandler) GetRiskyPositions(w http.ResponseWriter, r *http.Request) {
	if h.risky == nil {
		respondError(w, http.StatusInternalServerError, "position service not initialized", "")
		return
	}

	minTier := risk.TierWarning
	if level := strings.ToLower(r.URL.Query().Get("min_risk_level")); level != "" {
		tier := risk.Tier(level)
		if !tier.Valid() {
			respondError(w, http.StatusBadRequest, "invalid min_risk_level",
				"valid levels: critical, danger, warning, safe")
			return
		}
		minTier = tier
	}

	positions, err := h.risky.GetRiskyPositions(r.Context(), minTier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get positions", err.Error())
		return
	}

	if positions == nil {
		positions = []models.Position{}
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetPositionsByAddress возвращает позиции одного адреса.
//
// GET /api/v1/positions/{address}
//
// Response 200 OK: массив позиций адреса, отсортированный по риску
// Response 400 Bad Request: некорректный адрес
func (h *PositionHandler) GetPositionsByAddress(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		respondError(w, http.StatusInternalServerError, "position service not initialized", "")
		return
	}

	address := strings.ToLower(mux.Vars(r)["address"])
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		respondError(w, http.StatusBadRequest, "invalid address",
			"expected 0x-prefixed 40-hex-char address")
		return
	}

	positions, err := h.positions.GetPositionsByAddress(r.Context(), address)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get positions", err.Error())
		return
	}

	if positions == nil {
		positions = []models.Position{}
	}

	respondJSON(w, http.StatusOK, positions)
}

func validSortField(field string) bool {
	switch field {
	case models.SortByLiquidationDistance, models.SortByPositionValue, models.SortByUnrealizedPnl:
		return true
	}
	return false
}
