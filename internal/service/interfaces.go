// Package service содержит бизнес-логику поверх репозиториев и клиента API.
package service

import (
	"context"
	"time"

	"github.com/jd0713/schadenfreude/internal/hyperliquid"
	"github.com/jd0713/schadenfreude/internal/models"
)

// AccountSource - доступ к Hyperliquid info API
type AccountSource interface {
	GetAccountState(ctx context.Context, address string) (*hyperliquid.AccountState, error)
	GetAccountStates(ctx context.Context, addresses []string) (map[string]*hyperliquid.AccountState, error)
	GetAllMids(ctx context.Context) (map[string]float64, error)
}

// EntityStore - хранилище отслеживаемых сущностей
type EntityStore interface {
	Upsert(entity *models.Entity) error
	GetByAddress(address string) (*models.Entity, error)
	GetAll() ([]models.Entity, error)
	GetAddresses() ([]string, error)
	Count() (int, error)
	Delete(address string) error
}

// PositionStore - хранилище позиций
type PositionStore interface {
	Upsert(position *models.Position) error
	GetAll() ([]models.Position, error)
	GetByAddress(address string) ([]models.Position, error)
	GetByID(id int) (*models.Position, error)
	DeleteStale(address string, keepCoins []string) ([]int, error)
	Count() (int, error)
	CountUpdatedSince(since time.Time) (int, error)
	LastUpdatedAt() (time.Time, error)
}

// AlertStore - журнал алертов
type AlertStore interface {
	Create(alert *models.LiquidationAlert) error
	GetRecent(limit int) ([]models.LiquidationAlert, error)
	CountByType() (map[string]int, error)
	DeleteForPosition(positionID int) (int64, error)
}

// Broadcaster - рассылка обновлений подписчикам (websocket hub).
// Реализация может отсутствовать - тогда используется NopBroadcaster.
type Broadcaster interface {
	BroadcastPositions(positions []models.Position)
	BroadcastAlert(alert models.LiquidationAlert, position models.Position)
	BroadcastStats(stats models.MonitorStats)
}

// NopBroadcaster - заглушка для работы без websocket слоя
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastPositions([]models.Position)                        {}
func (NopBroadcaster) BroadcastAlert(models.LiquidationAlert, models.Position)     {}
func (NopBroadcaster) BroadcastStats(models.MonitorStats)                          {}
