// Package hyperliquid - типизированный клиент Hyperliquid info API.
//
// API возвращает числовые поля строками ("entryPx": "42000.5"),
// поэтому wire-типы хранят строки, а конвертация в доменные типы
// происходит на границе (ToPosition).
package hyperliquid

import (
	"strconv"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
)

// Leverage - плечо позиции. Value приходит числом, не строкой.
type Leverage struct {
	Type  string  `json:"type"` // cross или isolated
	Value float64 `json:"value"`
}

// PositionData - сырая позиция из clearinghouseState
type PositionData struct {
	Coin           string   `json:"coin"`
	EntryPx        string   `json:"entryPx"`
	Szi            string   `json:"szi"` // знаковый размер: >0 long, <0 short
	Leverage       Leverage `json:"leverage"`
	LiquidationPx  string   `json:"liquidationPx"` // может быть null/пустым для кросс-маржи
	MarginUsed     string   `json:"marginUsed"`
	PositionValue  string   `json:"positionValue"`
	UnrealizedPnl  string   `json:"unrealizedPnl"`
	ReturnOnEquity string   `json:"returnOnEquity"`
	MaxLeverage    int      `json:"maxLeverage"`
}

// AssetPosition - обёртка позиции в ответе API
type AssetPosition struct {
	Type     string       `json:"type"`
	Position PositionData `json:"position"`
}

// MarginSummary - сводка по марже аккаунта
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// AccountState - ответ clearinghouseState для одного адреса
type AccountState struct {
	AssetPositions     []AssetPosition `json:"assetPositions"`
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
	Time               int64           `json:"time"`
}

// parseNum парсит числовую строку API. Пустая строка или null = 0.
func parseNum(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ToPosition конвертирует сырую позицию в доменную.
// Возвращает false для пустых позиций (szi == 0) - их не отслеживаем.
func (ap AssetPosition) ToPosition(address string) (models.Position, bool) {
	size := parseNum(ap.Position.Szi)
	if size == 0 {
		return models.Position{}, false
	}

	return models.Position{
		Address:          address,
		Coin:             ap.Position.Coin,
		EntryPrice:       parseNum(ap.Position.EntryPx),
		Size:             size,
		Leverage:         ap.Position.Leverage.Value,
		LiquidationPrice: parseNum(ap.Position.LiquidationPx),
		MarginUsed:       parseNum(ap.Position.MarginUsed),
		PositionValue:    parseNum(ap.Position.PositionValue),
		UnrealizedPnl:    parseNum(ap.Position.UnrealizedPnl),
		LastUpdated:      time.Now().UTC(),
	}, true
}

// Positions возвращает все непустые позиции аккаунта
func (s *AccountState) Positions(address string) []models.Position {
	positions := make([]models.Position, 0, len(s.AssetPositions))
	for _, ap := range s.AssetPositions {
		if p, ok := ap.ToPosition(address); ok {
			positions = append(positions, p)
		}
	}
	return positions
}
