package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jd0713/schadenfreude/internal/hyperliquid"
	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/risk"
)

// testStoredPositions - снимок позиций в БД для query-тестов
func testStoredPositions() []models.Position {
	return []models.Position{
		{ID: 1, Address: addrA, Coin: "BTC", EntryPrice: 100, Size: 10, LiquidationPrice: 80},
		{ID: 2, Address: addrA, Coin: "ETH", EntryPrice: 100, Size: -5, LiquidationPrice: 120},
		{ID: 3, Address: addrB, Coin: "SOL", EntryPrice: 100, Size: 1, LiquidationPrice: 50},
	}
}

const (
	addrA = "0xaaaa567890abcdef1234567890abcdef12345678"
	addrB = "0xbbbb567890abcdef1234567890abcdef12345678"
)

func TestFetchAddresses_Success(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(hyperliquid.PositionData{
				Coin:          "BTC",
				EntryPx:       "100",
				Szi:           "10",
				LiquidationPx: "80",
			}),
		},
		mids: map[string]float64{"BTC": 84},
	}
	positions := &mockPositionStore{}
	alerts := &mockAlertStore{}
	broadcast := &mockBroadcaster{}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, alerts, broadcast, testLogger())

	result, enriched, err := svc.FetchAddresses(context.Background(), []string{addrA})
	if err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	if !result.Success {
		t.Error("result should be successful")
	}
	if result.PositionsUpdated != 1 {
		t.Errorf("PositionsUpdated = %d, expected 1", result.PositionsUpdated)
	}

	if len(enriched) != 1 {
		t.Fatalf("got %d enriched positions, expected 1", len(enriched))
	}
	// (84 - 80) / 84 * 100 = ~4.76% -> critical
	if enriched[0].RiskTier != string(risk.TierCritical) {
		t.Errorf("tier = %q, expected critical", enriched[0].RiskTier)
	}

	// Алерт должен быть записан для critical позиции
	if len(alerts.created) != 1 {
		t.Fatalf("got %d alerts, expected 1", len(alerts.created))
	}
	if alerts.created[0].AlertType != string(risk.TierCritical) {
		t.Errorf("alert type = %q, expected critical", alerts.created[0].AlertType)
	}

	// Удаление закрытых позиций должно сохранить открытую BTC
	keep, ok := positions.deleteCalls[addrA]
	if !ok {
		t.Fatal("DeleteStale was not called")
	}
	if len(keep) != 1 || keep[0] != "BTC" {
		t.Errorf("keepCoins = %v, expected [BTC]", keep)
	}

	// Подписчики должны получить обновление
	if len(broadcast.positionBatches) != 1 {
		t.Errorf("got %d position broadcasts, expected 1", len(broadcast.positionBatches))
	}
	if len(broadcast.alerts) != 1 {
		t.Errorf("got %d alert broadcasts, expected 1", len(broadcast.alerts))
	}
}

func TestFetchAddresses_MissingStateKeepsPositions(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(hyperliquid.PositionData{
				Coin: "BTC", EntryPx: "100", Szi: "1", LiquidationPx: "50",
			}),
		},
		mids: map[string]float64{"BTC": 100},
	}
	positions := &mockPositionStore{}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, &mockAlertStore{}, nil, testLogger())

	result, _, err := svc.FetchAddresses(context.Background(), []string{addrA, addrB})
	if err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	if result.Success {
		t.Error("result should not be successful with a failed address")
	}
	if result.PositionsFailed != 1 {
		t.Errorf("PositionsFailed = %d, expected 1", result.PositionsFailed)
	}
	if len(result.Errors) != 1 {
		t.Errorf("got %d errors, expected 1", len(result.Errors))
	}

	// Недоступный адрес должен быть назван явно - по этому списку
	// планировщик сохраняет его трекеры
	if len(result.FailedAddresses) != 1 || result.FailedAddresses[0] != addrB {
		t.Errorf("FailedAddresses = %v, expected [%s]", result.FailedAddresses, addrB)
	}

	// Позиции недоступного адреса НЕ должны удаляться:
	// отсутствие данных не означает закрытие позиции
	if _, ok := positions.deleteCalls[addrB]; ok {
		t.Error("DeleteStale must not be called for address with no data")
	}
}

func TestFetchAddresses_UnknownPriceKeepsStoredRow(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(hyperliquid.PositionData{
				Coin: "OBSCURE", EntryPx: "10", Szi: "100", LiquidationPx: "9",
			}),
		},
		mids: map[string]float64{"BTC": 50000}, // цены OBSCURE нет
	}
	positions := &mockPositionStore{}
	alerts := &mockAlertStore{}
	broadcast := &mockBroadcaster{}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, alerts, broadcast, testLogger())

	result, enriched, err := svc.FetchAddresses(context.Background(), []string{addrA})
	if err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	// Без цены снимок в БД не перезаписывается и метрики риска не считаются
	if result.PositionsUpdated != 0 {
		t.Errorf("PositionsUpdated = %d, expected 0", result.PositionsUpdated)
	}
	if len(positions.upserted) != 0 {
		t.Errorf("got %d upserts, expected 0 without a price", len(positions.upserted))
	}
	if len(enriched) != 0 {
		t.Errorf("got %d enriched positions, expected 0", len(enriched))
	}
	if len(alerts.created) != 0 {
		t.Errorf("got %d alerts, expected 0", len(alerts.created))
	}
	if len(broadcast.positionBatches) != 0 {
		t.Error("no broadcast expected without enriched positions")
	}

	// Монета без цены должна быть названа явно - по этому списку
	// планировщик сохраняет её трекер
	unpriced := result.UnpricedCoins[addrA]
	if len(unpriced) != 1 || unpriced[0] != "OBSCURE" {
		t.Errorf("UnpricedCoins[%s] = %v, expected [OBSCURE]", addrA, unpriced)
	}

	// Позиция открыта, её нельзя удалять
	keep := positions.deleteCalls[addrA]
	if len(keep) != 1 || keep[0] != "OBSCURE" {
		t.Errorf("keepCoins = %v, expected [OBSCURE]", keep)
	}
}

func TestFetchAddresses_AllPositionsClosed(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(), // позиций больше нет
		},
		mids: map[string]float64{"BTC": 50000},
	}
	positions := &mockPositionStore{}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, &mockAlertStore{}, nil, testLogger())

	if _, _, err := svc.FetchAddresses(context.Background(), []string{addrA}); err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	// Пустой keepCoins - все позиции адреса удаляются
	keep, ok := positions.deleteCalls[addrA]
	if !ok {
		t.Fatal("DeleteStale was not called")
	}
	if len(keep) != 0 {
		t.Errorf("keepCoins = %v, expected empty", keep)
	}
}

func TestFetchAddresses_ClosedPositionPrunesAlerts(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(), // позиций больше нет
		},
		mids: map[string]float64{"BTC": 50000},
	}
	positions := &mockPositionStore{staleIDs: []int{7, 12}}
	alerts := &mockAlertStore{}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, alerts, nil, testLogger())

	if _, _, err := svc.FetchAddresses(context.Background(), []string{addrA}); err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	// Алерты удалённых позиций вычищаются из журнала
	if len(alerts.pruned) != 2 || alerts.pruned[0] != 7 || alerts.pruned[1] != 12 {
		t.Errorf("pruned alert positions = %v, expected [7 12]", alerts.pruned)
	}
}

func TestFetchAddresses_PriceFetchFailure(t *testing.T) {
	source := &mockAccountSource{
		midsErr: errors.New("api unavailable"),
	}

	svc := NewFetcherService(source, &mockEntityStore{}, &mockPositionStore{}, &mockAlertStore{}, nil, testLogger())

	_, _, err := svc.FetchAddresses(context.Background(), []string{addrA})
	if err == nil {
		t.Fatal("expected error when prices are unavailable")
	}
}

func TestFetchAddresses_SafePositionNoAlert(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(hyperliquid.PositionData{
				Coin: "BTC", EntryPx: "100", Szi: "1", LiquidationPx: "50",
			}),
		},
		mids: map[string]float64{"BTC": 100}, // дистанция 50% -> safe
	}
	alerts := &mockAlertStore{}

	svc := NewFetcherService(source, &mockEntityStore{}, &mockPositionStore{}, alerts, nil, testLogger())

	_, enriched, err := svc.FetchAddresses(context.Background(), []string{addrA})
	if err != nil {
		t.Fatalf("FetchAddresses() error: %v", err)
	}

	if enriched[0].RiskTier != string(risk.TierSafe) {
		t.Errorf("tier = %q, expected safe", enriched[0].RiskTier)
	}
	if len(alerts.created) != 0 {
		t.Errorf("got %d alerts, expected 0 for safe position", len(alerts.created))
	}
}

func TestFetchAll_UsesTrackedAddresses(t *testing.T) {
	source := &mockAccountSource{
		states: map[string]*hyperliquid.AccountState{
			addrA: makeAccountState(),
			addrB: makeAccountState(),
		},
		mids: map[string]float64{"BTC": 50000},
	}
	entities := &mockEntityStore{addresses: []string{addrA, addrB}}
	positions := &mockPositionStore{}

	svc := NewFetcherService(source, entities, positions, &mockAlertStore{}, nil, testLogger())

	result, _, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if !result.Success {
		t.Error("result should be successful")
	}

	if len(positions.deleteCalls) != 2 {
		t.Errorf("DeleteStale called for %d addresses, expected 2", len(positions.deleteCalls))
	}
}

func TestGetRiskyPositions(t *testing.T) {
	positions := &mockPositionStore{
		all: testStoredPositions(),
	}
	source := &mockAccountSource{
		mids: map[string]float64{"BTC": 84, "ETH": 110, "SOL": 100},
	}

	svc := NewFetcherService(source, &mockEntityStore{}, positions, &mockAlertStore{}, nil, testLogger())

	risky, err := svc.GetRiskyPositions(context.Background(), risk.TierDanger)
	if err != nil {
		t.Fatalf("GetRiskyPositions() error: %v", err)
	}

	// BTC long 84/80 ~4.76% critical, ETH short 110/120 ~9.09% danger,
	// SOL long 100/50 50% safe - отфильтрован
	if len(risky) != 2 {
		t.Fatalf("got %d risky positions, expected 2", len(risky))
	}
	if risky[0].Coin != "BTC" {
		t.Errorf("first position = %s, expected BTC (most at risk)", risky[0].Coin)
	}
	if risky[1].Coin != "ETH" {
		t.Errorf("second position = %s, expected ETH", risky[1].Coin)
	}
}
