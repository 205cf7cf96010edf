package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/monitor"
	"github.com/jd0713/schadenfreude/internal/risk"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// FetcherService - синхронизация позиций из Hyperliquid в БД.
//
// Один проход FetchAddresses:
//  1. один запрос allMids на все цены
//  2. батч clearinghouseState по адресам
//  3. upsert открытых позиций, удаление закрытых
//  4. запись алертов по позициям с тиром опаснее safe
//  5. рассылка обновлений подписчикам
type FetcherService struct {
	client    AccountSource
	entities  EntityStore
	positions PositionStore
	alerts    AlertStore
	broadcast Broadcaster
	log       *utils.Logger
}

// NewFetcherService создаёт сервис синхронизации
func NewFetcherService(
	client AccountSource,
	entities EntityStore,
	positions PositionStore,
	alerts AlertStore,
	broadcast Broadcaster,
	logger *utils.Logger,
) *FetcherService {
	if broadcast == nil {
		broadcast = NopBroadcaster{}
	}

	return &FetcherService{
		client:    client,
		entities:  entities,
		positions: positions,
		alerts:    alerts,
		broadcast: broadcast,
		log:       logger.WithComponent("fetcher"),
	}
}

// FetchAll синхронизирует позиции всех отслеживаемых адресов
func (s *FetcherService) FetchAll(ctx context.Context) (*models.SyncResult, []models.Position, error) {
	addresses, err := s.entities.GetAddresses()
	if err != nil {
		return nil, nil, fmt.Errorf("load addresses: %w", err)
	}

	return s.FetchAddresses(ctx, addresses)
}

// FetchAddresses синхронизирует позиции указанных адресов.
//
// Адреса, для которых не удалось получить состояние аккаунта,
// попадают в FailedAddresses, но их позиции в БД НЕ трогаются:
// отсутствие данных не означает закрытие позиции. Удаляются только
// позиции, которых нет в успешно полученном состоянии. Открытые
// позиции без текущей цены перечисляются в UnpricedCoins - их
// снимок в БД тоже остаётся нетронутым.
func (s *FetcherService) FetchAddresses(ctx context.Context, addresses []string) (*models.SyncResult, []models.Position, error) {
	result := &models.SyncResult{Timestamp: time.Now().UTC()}

	if len(addresses) == 0 {
		result.Success = true
		return result, nil, nil
	}

	// Один запрос цен на весь проход
	prices, err := s.client.GetAllMids(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch prices: %w", err)
	}

	states, err := s.client.GetAccountStates(ctx, addresses)
	if err != nil {
		return nil, nil, err
	}

	var enriched []models.Position

	for _, address := range addresses {
		state, ok := states[address]
		if !ok {
			result.PositionsFailed++
			result.FailedAddresses = append(result.FailedAddresses, address)
			result.Errors = append(result.Errors, fmt.Sprintf("no account state for %s", address))
			continue
		}

		open := state.Positions(address)

		keepCoins := make([]string, 0, len(open))
		for i := range open {
			p := &open[i]
			keepCoins = append(keepCoins, p.Coin)

			price, known := prices[p.Coin]
			if !known || price <= 0 {
				// Цена недоступна: снимок в БД не трогаем и дистанцию
				// не считаем. Позиция остаётся под наблюдением.
				if result.UnpricedCoins == nil {
					result.UnpricedCoins = make(map[string][]string)
				}
				result.UnpricedCoins[address] = append(result.UnpricedCoins[address], p.Coin)
				s.log.Debug("price unknown, keeping stored snapshot",
					utils.Address(address),
					utils.Coin(p.Coin),
				)
				continue
			}

			if err := s.positions.Upsert(p); err != nil {
				result.PositionsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("upsert %s/%s: %v", address, p.Coin, err))
				continue
			}
			result.PositionsUpdated++

			e := risk.Enrich(*p, price)
			enriched = append(enriched, e)

			if risk.Tier(e.RiskTier).AtLeast(risk.TierWarning) {
				s.recordAlert(e)
			}
		}

		// Позиции, которых больше нет на бирже, закрыты - удаляем
		// вместе с их записями в журнале алертов
		deleted, err := s.positions.DeleteStale(address, keepCoins)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete stale %s: %v", address, err))
		} else if len(deleted) > 0 {
			for _, id := range deleted {
				if _, err := s.alerts.DeleteForPosition(id); err != nil {
					s.log.Warn("failed to prune alerts",
						utils.PositionID(id),
						utils.Err(err),
					)
				}
			}
			s.log.Info("removed closed positions",
				utils.Address(address),
				utils.Int("deleted", len(deleted)),
			)
		}
	}

	result.Success = result.PositionsFailed == 0

	if len(enriched) > 0 {
		s.broadcast.BroadcastPositions(enriched)
	}

	return result, enriched, nil
}

// recordAlert пишет алерт в журнал и рассылает подписчикам
func (s *FetcherService) recordAlert(p models.Position) {
	alert := models.LiquidationAlert{
		PositionID:            p.ID,
		AlertType:             p.RiskTier,
		DistanceToLiquidation: p.LiquidationDistance,
		CurrentPrice:          p.CurrentPrice,
	}

	if err := s.alerts.Create(&alert); err != nil {
		s.log.Error("failed to record alert",
			utils.PositionID(p.ID),
			utils.Err(err),
		)
		return
	}

	monitor.RecordAlert(p.RiskTier)

	s.log.Warn("liquidation alert",
		utils.Address(p.Address),
		utils.Coin(p.Coin),
		utils.Tier(p.RiskTier),
		utils.Distance(p.LiquidationDistance),
		utils.Price(p.CurrentPrice),
	)

	s.broadcast.BroadcastAlert(alert, p)
}

// GetRiskyPositions возвращает позиции с тиром не безопаснее minTier,
// отсортированные от самых рискованных
func (s *FetcherService) GetRiskyPositions(ctx context.Context, minTier risk.Tier) ([]models.Position, error) {
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

	enriched := enrichAll(stored, prices)
	return risk.SortByRisk(risk.FilterByMinTier(enriched, minTier)), nil
}

// enrichAll пересчитывает метрики позиций от текущих цен.
// Позиции с неизвестной ценой опускаются.
func enrichAll(positions []models.Position, prices map[string]float64) []models.Position {
	enriched := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		price, ok := prices[p.Coin]
		if !ok || price <= 0 {
			continue
		}
		enriched = append(enriched, risk.Enrich(p, price))
	}
	return enriched
}
