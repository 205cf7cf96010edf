package websocket

import (
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePositionUpdate - пакет обогащённых позиций
	// Отправляется после каждого цикла синхронизации
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeAlert - позиция вошла в опасную зону
	// Отправляется при записи алерта (warning и ближе к ликвидации)
	MessageTypeAlert MessageType = "alert"

	// MessageTypeStatsUpdate - агрегированная статистика мониторинга
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PositionUpdateMessage - пакет свежих позиций после синхронизации.
//
// Содержит только позиции, обогащённые текущей ценой: дистанция до
// ликвидации, тир риска, нереализованный PNL. Frontend заменяет ими
// свои данные по ключу (address, coin).
type PositionUpdateMessage struct {
	BaseMessage
	Count int               `json:"count"`
	Data  []models.Position `json:"data"`
}

// AlertMessage - сообщение о позиции в опасной зоне
type AlertMessage struct {
	BaseMessage
	Data *AlertData `json:"data"`
}

// AlertData - данные алерта вместе с контекстом позиции
type AlertData struct {
	// ID алерта в БД
	ID int `json:"id,omitempty"`

	// Тир на момент алерта (warning, danger, critical)
	AlertType string `json:"alert_type"`

	// Владелец и инструмент позиции
	Address    string `json:"address"`
	EntityName string `json:"entity_name,omitempty"`
	Coin       string `json:"coin"`
	Side       string `json:"side"`

	// Дистанция до ликвидации в процентах
	Distance float64 `json:"distance_to_liquidation"`

	CurrentPrice     float64 `json:"current_price"`
	LiquidationPrice float64 `json:"liquidation_price"`
	PositionValue    float64 `json:"position_value"`
}

// StatsUpdateMessage - сообщение со статистикой мониторинга
type StatsUpdateMessage struct {
	BaseMessage
	Data models.MonitorStats `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewPositionUpdateMessage создает сообщение с пакетом позиций
func NewPositionUpdateMessage(positions []models.Position) *PositionUpdateMessage {
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionUpdate,
			Timestamp: time.Now(),
		},
		Count: len(positions),
		Data:  positions,
	}
}

// NewAlertMessage создает сообщение алерта с контекстом позиции
func NewAlertMessage(alert models.LiquidationAlert, position models.Position) *AlertMessage {
	side := "short"
	if position.IsLong() {
		side = "long"
	}

	return &AlertMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAlert,
			Timestamp: time.Now(),
		},
		Data: &AlertData{
			ID:               alert.ID,
			AlertType:        alert.AlertType,
			Address:          position.Address,
			EntityName:       position.EntityName,
			Coin:             position.Coin,
			Side:             side,
			Distance:         alert.DistanceToLiquidation,
			CurrentPrice:     alert.CurrentPrice,
			LiquidationPrice: position.LiquidationPrice,
			PositionValue:    position.PositionValue,
		},
	}
}

// NewStatsUpdateMessage создает сообщение статистики
func NewStatsUpdateMessage(stats models.MonitorStats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}
