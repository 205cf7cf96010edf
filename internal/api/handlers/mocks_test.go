package handlers

import (
	"context"
	"errors"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/monitor"
	"github.com/jd0713/schadenfreude/internal/risk"
)

// ErrMockDatabase - стандартная ошибка для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock PositionReader ============

type mockPositionReader struct {
	positions   []models.Position
	err         error
	lastFilters models.PositionFilters
	lastAddress string
}

func (m *mockPositionReader) GetPositions(_ context.Context, filters models.PositionFilters) ([]models.Position, error) {
	m.lastFilters = filters
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func (m *mockPositionReader) GetPositionsByAddress(_ context.Context, address string) ([]models.Position, error) {
	m.lastAddress = address
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

// ============ Mock RiskyPositionReader ============

type mockRiskyReader struct {
	positions []models.Position
	err       error
	lastTier  risk.Tier
}

func (m *mockRiskyReader) GetRiskyPositions(_ context.Context, minTier risk.Tier) ([]models.Position, error) {
	m.lastTier = minTier
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

// ============ Mock EntityStore ============

type mockEntityStore struct {
	entities   []models.Entity
	err        error
	deleteErr  error
	imported   []models.Entity
	importErrs []string
	deleted    []string
}

func (m *mockEntityStore) GetAll() ([]models.Entity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entities, nil
}

func (m *mockEntityStore) Import(entities []models.Entity) (int, []string) {
	m.imported = entities
	return len(entities) - len(m.importErrs), m.importErrs
}

func (m *mockEntityStore) Delete(address string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, address)
	return nil
}

// ============ Mock StatsReader ============

type mockStatsReader struct {
	stats     *models.MonitorStats
	prices    map[string]float64
	alerts    []models.LiquidationAlert
	err       error
	lastLimit int
}

func (m *mockStatsReader) GetStats(_ context.Context) (*models.MonitorStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

func (m *mockStatsReader) GetPrices(_ context.Context) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prices, nil
}

func (m *mockStatsReader) GetRecentAlerts(limit int) ([]models.LiquidationAlert, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

// ============ Mock SyncTrigger / Scheduler / Health ============

type mockSyncTrigger struct {
	result *models.SyncResult
	err    error
	calls  int
}

func (m *mockSyncTrigger) FetchAll(_ context.Context) (*models.SyncResult, []models.Position, error) {
	m.calls++
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.result, nil, nil
}

type mockSchedulerStats struct {
	stats monitor.SchedulerStats
}

func (m *mockSchedulerStats) Stats() monitor.SchedulerStats {
	return m.stats
}

type mockHealthReporter struct {
	report models.HealthReport
}

func (m *mockHealthReporter) Report() models.HealthReport {
	return m.report
}
