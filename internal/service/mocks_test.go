package service

import (
	"context"
	"time"

	"github.com/jd0713/schadenfreude/internal/hyperliquid"
	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// ============================================================
// Моки зависимостей сервисов
// ============================================================

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Output: "/dev/null"})
}

// makeAccountState собирает состояние аккаунта из сырых позиций
func makeAccountState(positions ...hyperliquid.PositionData) *hyperliquid.AccountState {
	state := &hyperliquid.AccountState{}
	for _, p := range positions {
		state.AssetPositions = append(state.AssetPositions, hyperliquid.AssetPosition{
			Type:     "oneWay",
			Position: p,
		})
	}
	return state
}

type mockAccountSource struct {
	states    map[string]*hyperliquid.AccountState
	statesErr error
	mids      map[string]float64
	midsErr   error

	midsCalls int
}

func (m *mockAccountSource) GetAccountState(_ context.Context, address string) (*hyperliquid.AccountState, error) {
	if m.statesErr != nil {
		return nil, m.statesErr
	}
	state, ok := m.states[address]
	if !ok {
		return nil, hyperliquid.ErrEmptyResponse
	}
	return state, nil
}

func (m *mockAccountSource) GetAccountStates(_ context.Context, addresses []string) (map[string]*hyperliquid.AccountState, error) {
	if m.statesErr != nil {
		return nil, m.statesErr
	}
	result := make(map[string]*hyperliquid.AccountState)
	for _, address := range addresses {
		if state, ok := m.states[address]; ok {
			result[address] = state
		}
	}
	return result, nil
}

func (m *mockAccountSource) GetAllMids(_ context.Context) (map[string]float64, error) {
	m.midsCalls++
	if m.midsErr != nil {
		return nil, m.midsErr
	}
	return m.mids, nil
}

type mockEntityStore struct {
	entities  []models.Entity
	addresses []string
	err       error

	upserted []models.Entity
	deleted  []string
}

func (m *mockEntityStore) Upsert(entity *models.Entity) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, *entity)
	return nil
}

func (m *mockEntityStore) GetByAddress(address string) (*models.Entity, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.entities {
		if m.entities[i].Address == address {
			return &m.entities[i], nil
		}
	}
	return nil, m.err
}

func (m *mockEntityStore) GetAll() ([]models.Entity, error) {
	return m.entities, m.err
}

func (m *mockEntityStore) GetAddresses() ([]string, error) {
	return m.addresses, m.err
}

func (m *mockEntityStore) Count() (int, error) {
	return len(m.entities), m.err
}

func (m *mockEntityStore) Delete(address string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, address)
	return nil
}

type mockPositionStore struct {
	all       []models.Position
	err       error
	upsertErr error

	nextID       int
	upserted     []models.Position
	deleteCalls  map[string][]string
	staleIDs     []int // id, которые вернёт DeleteStale
	lastUpdated  time.Time
	updatedCount int
}

func (m *mockPositionStore) Upsert(position *models.Position) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.nextID++
	position.ID = m.nextID
	m.upserted = append(m.upserted, *position)
	return nil
}

func (m *mockPositionStore) GetAll() ([]models.Position, error) {
	return m.all, m.err
}

func (m *mockPositionStore) GetByAddress(address string) ([]models.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []models.Position
	for _, p := range m.all {
		if p.Address == address {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPositionStore) GetByID(id int) (*models.Position, error) {
	for i := range m.all {
		if m.all[i].ID == id {
			return &m.all[i], nil
		}
	}
	return nil, m.err
}

func (m *mockPositionStore) DeleteStale(address string, keepCoins []string) ([]int, error) {
	if m.deleteCalls == nil {
		m.deleteCalls = make(map[string][]string)
	}
	m.deleteCalls[address] = keepCoins
	return m.staleIDs, nil
}

func (m *mockPositionStore) Count() (int, error) {
	return len(m.all), m.err
}

func (m *mockPositionStore) LastUpdatedAt() (time.Time, error) {
	return m.lastUpdated, m.err
}

func (m *mockPositionStore) CountUpdatedSince(_ time.Time) (int, error) {
	return m.updatedCount, m.err
}

type mockAlertStore struct {
	created []models.LiquidationAlert
	pruned  []int
	err     error
}

func (m *mockAlertStore) Create(alert *models.LiquidationAlert) error {
	if m.err != nil {
		return m.err
	}
	alert.ID = len(m.created) + 1
	m.created = append(m.created, *alert)
	return nil
}

func (m *mockAlertStore) GetRecent(limit int) ([]models.LiquidationAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.created) {
		limit = len(m.created)
	}
	return m.created[:limit], nil
}

func (m *mockAlertStore) DeleteForPosition(positionID int) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.pruned = append(m.pruned, positionID)

	var deleted int64
	kept := m.created[:0]
	for _, a := range m.created {
		if a.PositionID == positionID {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	m.created = kept

	return deleted, nil
}

func (m *mockAlertStore) CountByType() (map[string]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := make(map[string]int)
	for _, a := range m.created {
		counts[a.AlertType]++
	}
	return counts, nil
}

type mockBroadcaster struct {
	positionBatches [][]models.Position
	alerts          []models.LiquidationAlert
	stats           []models.MonitorStats
}

func (m *mockBroadcaster) BroadcastPositions(positions []models.Position) {
	m.positionBatches = append(m.positionBatches, positions)
}

func (m *mockBroadcaster) BroadcastAlert(alert models.LiquidationAlert, _ models.Position) {
	m.alerts = append(m.alerts, alert)
}

func (m *mockBroadcaster) BroadcastStats(stats models.MonitorStats) {
	m.stats = append(m.stats, stats)
}
