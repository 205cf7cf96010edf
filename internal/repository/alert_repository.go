package repository

import (
	"database/sql"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
)

// AlertRepository - работа с журналом liquidation_alerts.
// Журнал append-only: запись создаётся при каждом обновлении
// позиции с тиром опаснее safe.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository создает новый экземпляр репозитория
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create добавляет запись в журнал алертов
func (r *AlertRepository) Create(alert *models.LiquidationAlert) error {
	query := `
		INSERT INTO liquidation_alerts (position_id, alert_type, distance_to_liquidation, current_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		alert.PositionID,
		alert.AlertType,
		alert.DistanceToLiquidation,
		alert.CurrentPrice,
		alert.CreatedAt,
	).Scan(&alert.ID)
}

// GetRecent возвращает последние алерты, новые первыми
func (r *AlertRepository) GetRecent(limit int) ([]models.LiquidationAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, position_id, alert_type, distance_to_liquidation, current_price, created_at
		FROM liquidation_alerts
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetByPositionID возвращает алерты одной позиции, новые первыми
func (r *AlertRepository) GetByPositionID(positionID int, limit int) ([]models.LiquidationAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, position_id, alert_type, distance_to_liquidation, current_price, created_at
		FROM liquidation_alerts
		WHERE position_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, positionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountByType возвращает количество алертов по каждому типу
func (r *AlertRepository) CountByType() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT alert_type, COUNT(*) FROM liquidation_alerts GROUP BY alert_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var alertType string
		var count int
		if err := rows.Scan(&alertType, &count); err != nil {
			return nil, err
		}
		counts[alertType] = count
	}

	return counts, rows.Err()
}

// DeleteForPosition удаляет алерты одной позиции.
// FK positions(id) объявлен с ON DELETE CASCADE, так что в штатном
// режиме записи уходят вместе с позицией. Явное удаление нужно для
// очистки при ручных правках таблицы positions.
func (r *AlertRepository) DeleteForPosition(positionID int) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM liquidation_alerts WHERE position_id = $1`, positionID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteOlderThan удаляет алерты старше указанного возраста.
// Возвращает количество удалённых строк.
func (r *AlertRepository) DeleteOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)

	result, err := r.db.Exec(`DELETE FROM liquidation_alerts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func scanAlerts(rows *sql.Rows) ([]models.LiquidationAlert, error) {
	var alerts []models.LiquidationAlert
	for rows.Next() {
		var a models.LiquidationAlert
		err := rows.Scan(
			&a.ID,
			&a.PositionID,
			&a.AlertType,
			&a.DistanceToLiquidation,
			&a.CurrentPrice,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}
