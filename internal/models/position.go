package models

import "time"

// Position представляет открытую позицию отслеживаемого адреса.
//
// Поля до CurrentPrice приходят из clearinghouseState и хранятся в БД.
// Производные поля (CurrentPrice, PositionValue, UnrealizedPnl,
// LiquidationDistance, RiskTier) пересчитываются при каждом обновлении
// из свежей цены и НИКОГДА не считаются доверенными между вызовами.
type Position struct {
	ID         int    `json:"id,omitempty" db:"id"`
	Address    string `json:"address" db:"address"`             // владелец позиции
	EntityName string `json:"entity_name,omitempty"`            // имя сущности (join с entities)
	Twitter    string `json:"twitter,omitempty"`                // twitter сущности (join с entities)
	Coin       string `json:"coin" db:"coin"`                   // инструмент (BTC, ETH, ...)

	EntryPrice       float64 `json:"entry_price" db:"entry_price"`
	Size             float64 `json:"position_size" db:"position_size"` // знаковый размер: >0 long, <0 short
	Leverage         float64 `json:"leverage" db:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price" db:"liquidation_price"`
	MarginUsed       float64 `json:"margin_used" db:"margin_used"`

	// Производные поля — всегда от текущей цены
	CurrentPrice        float64 `json:"current_price,omitempty"`
	PositionValue       float64 `json:"position_value" db:"position_value"`
	UnrealizedPnl       float64 `json:"unrealized_pnl" db:"unrealized_pnl"`
	LiquidationDistance float64 `json:"liquidation_distance,omitempty"` // % до ликвидации
	RiskTier            string  `json:"risk_tier,omitempty"`            // critical, danger, warning, safe

	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// IsLong возвращает true для длинной позиции (знаковый размер > 0)
func (p *Position) IsLong() bool {
	return p.Size > 0
}

// Key возвращает уникальный ключ позиции (address, coin)
func (p *Position) Key() string {
	return p.Address + "_" + p.Coin
}

// PositionFilters параметры фильтрации для GET /api/v1/positions
type PositionFilters struct {
	RiskTier  string // фильтр по тиру риска (минимальный)
	Coin      string // фильтр по инструменту
	SortBy    string // liquidation_distance, position_value, unrealized_pnl
	SortOrder string // asc, desc
}

// Поля сортировки
const (
	SortByLiquidationDistance = "liquidation_distance"
	SortByPositionValue       = "position_value"
	SortByUnrealizedPnl       = "unrealized_pnl"
)

// SyncResult результат одного цикла полной синхронизации.
//
// FailedAddresses и UnpricedCoins дают вызывающему точную картину того,
// что именно НЕ обновилось: планировщик по ним сохраняет трекеры,
// а не считает позиции закрытыми.
type SyncResult struct {
	Success          bool      `json:"success"`
	PositionsUpdated int       `json:"positions_updated"`
	PositionsFailed  int       `json:"positions_failed"`
	Errors           []string  `json:"errors,omitempty"`
	Timestamp        time.Time `json:"timestamp"`

	// Адреса, для которых не удалось получить состояние аккаунта
	FailedAddresses []string `json:"failed_addresses,omitempty"`

	// Открытые позиции без текущей цены: адрес -> монеты
	UnpricedCoins map[string][]string `json:"unpriced_coins,omitempty"`
}
