package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/risk"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// PositionService - read-модель для API: позиции с живыми метриками риска.
// Снимок берётся из БД, цены - из Hyperliquid, производные поля
// считаются на каждый запрос.
type PositionService struct {
	client    AccountSource
	entities  EntityStore
	positions PositionStore
	alerts    AlertStore
	log       *utils.Logger
}

// NewPositionService создаёт сервис запросов позиций
func NewPositionService(
	client AccountSource,
	entities EntityStore,
	positions PositionStore,
	alerts AlertStore,
	logger *utils.Logger,
) *PositionService {
	return &PositionService{
		client:    client,
		entities:  entities,
		positions: positions,
		alerts:    alerts,
		log:       logger.WithComponent("positions"),
	}
}

// GetPositions возвращает позиции с фильтрацией и сортировкой
func (s *PositionService) GetPositions(ctx context.Context, filters models.PositionFilters) ([]models.Position, error) {
	stored, err := s.positions.GetAll()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil
	}

	prices, err := s.client.GetAllMids(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	result := enrichAll(stored, prices)

	if filters.Coin != "" {
		filtered := result[:0]
		for _, p := range result {
			if p.Coin == filters.Coin {
				filtered = append(filtered, p)
			}
		}
		result = filtered
	}

	if tier := risk.Tier(filters.RiskTier); tier.Valid() {
		result = risk.FilterByMinTier(result, tier)
	}

	return sortPositions(result, filters.SortBy, filters.SortOrder), nil
}

// GetPositionsByAddress возвращает позиции одного адреса с метриками риска
func (s *PositionService) GetPositionsByAddress(ctx context.Context, address string) ([]models.Position, error) {
	stored, err := s.positions.GetByAddress(address)
	if err != nil {
		return nil, fmt.Errorf("load positions for %s: %w", address, err)
	}
	if len(stored) == 0 {
		return nil, nil
	}

	prices, err := s.client.GetAllMids(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	return risk.SortByRisk(enrichAll(stored, prices)), nil
}

// GetPrices возвращает текущие mid-цены всех инструментов
func (s *PositionService) GetPrices(ctx context.Context) (map[string]float64, error) {
	return s.client.GetAllMids(ctx)
}

// GetRecentAlerts возвращает последние записи журнала алертов
func (s *PositionService) GetRecentAlerts(limit int) ([]models.LiquidationAlert, error) {
	return s.alerts.GetRecent(limit)
}

// GetStats собирает сводку по отслеживаемым позициям
func (s *PositionService) GetStats(ctx context.Context) (*models.MonitorStats, error) {
	stats := &models.MonitorStats{}

	entityCount, err := s.entities.Count()
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	stats.TotalEntities = entityCount

	stored, err := s.positions.GetAll()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	stats.TotalPositions = len(stored)

	lastSync, err := s.positions.LastUpdatedAt()
	if err != nil {
		return nil, fmt.Errorf("last sync: %w", err)
	}
	stats.LastSyncAt = lastSync

	updated, err := s.positions.CountUpdatedSince(time.Now().UTC().Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("count updated: %w", err)
	}
	stats.UpdatedLastHour = updated

	alertCounts, err := s.alerts.CountByType()
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	stats.AlertsByType = alertCounts

	if len(stored) == 0 {
		return stats, nil
	}

	prices, err := s.client.GetAllMids(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	for _, p := range enrichAll(stored, prices) {
		stats.TotalPositionValue += p.PositionValue
		stats.TotalUnrealizedPnl += p.UnrealizedPnl

		switch risk.Tier(p.RiskTier) {
		case risk.TierCritical:
			stats.Tiers.Critical++
		case risk.TierDanger:
			stats.Tiers.Danger++
		case risk.TierWarning:
			stats.Tiers.Warning++
		default:
			stats.Tiers.Safe++
		}
	}

	return stats, nil
}

// sortPositions сортирует по запрошенному полю.
// Без явного поля - сортировка по риску (самые опасные первыми).
func sortPositions(positions []models.Position, sortBy, sortOrder string) []models.Position {
	if sortBy == "" {
		return risk.SortByRisk(positions)
	}

	desc := sortOrder == "desc"

	less := func(a, b models.Position) bool {
		switch sortBy {
		case models.SortByPositionValue:
			return a.PositionValue < b.PositionValue
		case models.SortByUnrealizedPnl:
			return a.UnrealizedPnl < b.UnrealizedPnl
		default:
			return a.LiquidationDistance < b.LiquidationDistance
		}
	}

	sorted := make([]models.Position, len(positions))
	copy(sorted, positions)

	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})

	return sorted
}
