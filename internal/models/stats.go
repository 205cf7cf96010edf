package models

import "time"

// TierCounts - количество позиций по тирам риска
type TierCounts struct {
	Critical int `json:"critical"`
	Danger   int `json:"danger"`
	Warning  int `json:"warning"`
	Safe     int `json:"safe"`
}

// Total возвращает суммарное количество позиций
func (t TierCounts) Total() int {
	return t.Critical + t.Danger + t.Warning + t.Safe
}

// MonitorStats - сводка по отслеживаемым позициям для API и дашборда
type MonitorStats struct {
	TotalEntities      int            `json:"total_entities"`
	TotalPositions     int            `json:"total_positions"`
	Tiers              TierCounts     `json:"tiers"`
	TotalPositionValue float64        `json:"total_position_value"`
	TotalUnrealizedPnl float64        `json:"total_unrealized_pnl"`
	UpdatedLastHour    int            `json:"updated_last_hour"`
	AlertsByType       map[string]int `json:"alerts_by_type,omitempty"`
	LastSyncAt         time.Time      `json:"last_sync_at"`
}

// ComponentHealth - состояние одного компонента системы
type ComponentHealth struct {
	Name                string    `json:"name"`
	Status              string    `json:"status"` // up, degraded, down
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// Статусы компонентов
const (
	StatusUp       = "up"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthReport - сводное состояние всех компонентов
type HealthReport struct {
	Status     string            `json:"status"` // худший статус среди компонентов
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}
