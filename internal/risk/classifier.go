// Package risk содержит чистую логику классификации риска ликвидации.
// Никакого I/O: только расчёт дистанции до ликвидации и тира риска.
package risk

import (
	"math"
	"sort"

	"github.com/jd0713/schadenfreude/internal/models"
)

// Tier - тир риска позиции по дистанции до ликвидации
type Tier string

// Тиры упорядочены от самого опасного к самому безопасному
const (
	TierCritical Tier = "critical"
	TierDanger   Tier = "danger"
	TierWarning  Tier = "warning"
	TierSafe     Tier = "safe"
)

// Канонические пороги дистанции (в процентах).
// ВАЖНО: исходный продукт содержал две разные таблицы (2/5/10 и 5/10/20).
// Канонической выбрана таблица 5/10/20 — та, по которой работает
// тиринговый планировщик. Решение зафиксировано в DESIGN.md.
const (
	CriticalThreshold = 5.0  // < 5% до ликвидации
	DangerThreshold   = 10.0 // 5-10%
	WarningThreshold  = 20.0 // 10-20%
)

// rank возвращает порядковый номер тира (0 = самый опасный)
var tierRank = map[Tier]int{
	TierCritical: 0,
	TierDanger:   1,
	TierWarning:  2,
	TierSafe:     3,
}

// Rank возвращает порядковый номер тира: 0 = critical ... 3 = safe.
// Неизвестный тир считается safe (наименьший приоритет).
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return tierRank[TierSafe]
}

// AtLeast возвращает true если тир не безопаснее min
// (critical.AtLeast(warning) == true, safe.AtLeast(warning) == false)
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() <= min.Rank()
}

// Valid проверяет что строка является известным тиром
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Distance вычисляет дистанцию до ликвидации в процентах от текущей цены.
//
// Long:  ликвидация при падении цены ниже liquidationPrice
//        distance = (current - liquidation) / current * 100
// Short: ликвидация при росте цены выше liquidationPrice
//        distance = (liquidation - current) / current * 100
//
// Положительное значение = "запас прочности в процентах",
// ноль или отрицательное = ликвидация достигнута или пробита.
func Distance(currentPrice, liquidationPrice float64, isLong bool) float64 {
	if isLong {
		return (currentPrice - liquidationPrice) / currentPrice * 100
	}
	return (liquidationPrice - currentPrice) / currentPrice * 100
}

// Classify определяет тир риска по дистанции до ликвидации.
// NaN, бесконечность и отрицательная дистанция всегда дают critical.
func Classify(distance float64) Tier {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return TierCritical
	}
	switch {
	case distance < CriticalThreshold:
		return TierCritical
	case distance < DangerThreshold:
		return TierDanger
	case distance < WarningThreshold:
		return TierWarning
	default:
		return TierSafe
	}
}

// Enrich пересчитывает производные метрики позиции от текущей цены.
// Детерминирована и идемпотентна: одинаковые входы дают одинаковый выход.
// Исходная позиция не модифицируется.
func Enrich(p models.Position, currentPrice float64) models.Position {
	isLong := p.IsLong()

	// Цена ликвидации неизвестна (кросс-маржа без порога от API):
	// дистанцию посчитать нельзя, позиция трактуется как critical
	if p.LiquidationPrice <= 0 {
		absSize := math.Abs(p.Size)
		currentValue := absSize * currentPrice
		entryValue := absSize * p.EntryPrice

		p.CurrentPrice = currentPrice
		p.PositionValue = currentValue
		if isLong {
			p.UnrealizedPnl = currentValue - entryValue
		} else {
			p.UnrealizedPnl = entryValue - currentValue
		}
		p.LiquidationDistance = 0
		p.RiskTier = string(TierCritical)
		return p
	}

	absSize := math.Abs(p.Size)
	currentValue := absSize * currentPrice
	entryValue := absSize * p.EntryPrice

	var pnl float64
	if isLong {
		pnl = currentValue - entryValue
	} else {
		pnl = entryValue - currentValue
	}

	distance := Distance(currentPrice, p.LiquidationPrice, isLong)

	p.CurrentPrice = currentPrice
	p.PositionValue = currentValue
	p.UnrealizedPnl = pnl
	p.LiquidationDistance = distance
	p.RiskTier = string(Classify(distance))

	return p
}

// SortByRisk сортирует позиции от самых рискованных к самым безопасным:
// сначала по тиру, внутри тира — по возрастанию дистанции до ликвидации.
// Возвращает новый слайс, вход не модифицируется.
func SortByRisk(positions []models.Position) []models.Position {
	sorted := make([]models.Position, len(positions))
	copy(sorted, positions)

	sort.SliceStable(sorted, func(i, j int) bool {
		ri := Tier(sorted[i].RiskTier).Rank()
		rj := Tier(sorted[j].RiskTier).Rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].LiquidationDistance < sorted[j].LiquidationDistance
	})

	return sorted
}

// FilterByMinTier оставляет только позиции с тиром не безопаснее minTier
func FilterByMinTier(positions []models.Position, minTier Tier) []models.Position {
	filtered := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if Tier(p.RiskTier).AtLeast(minTier) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
