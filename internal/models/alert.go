package models

import "time"

// LiquidationAlert представляет запись о рискованной позиции.
// Создаётся при каждом обновлении позиции с тиром ниже safe.
// Доставка (email, telegram и т.д.) — задача внешнего коллаборатора,
// здесь только запись в журнал.
type LiquidationAlert struct {
	ID                    int       `json:"id" db:"id"`
	PositionID            int       `json:"position_id" db:"position_id"`
	AlertType             string    `json:"alert_type" db:"alert_type"` // warning, danger, critical
	DistanceToLiquidation float64   `json:"distance_to_liquidation" db:"distance_to_liquidation"`
	CurrentPrice          float64   `json:"current_price" db:"current_price"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}
