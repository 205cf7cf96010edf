package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/jd0713/schadenfreude/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions.
//
// В БД хранится только снимок с биржи (цена входа, размер, цена
// ликвидации и т.д.). Производные метрики (дистанция, тир риска)
// пересчитываются в памяти от текущей цены и в БД не пишутся.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Upsert вставляет или обновляет позицию по ключу (address, coin)
func (r *PositionRepository) Upsert(position *models.Position) error {
	query := `
		INSERT INTO positions (address, coin, entry_price, position_size, leverage, liquidation_price, margin_used, position_value, unrealized_pnl, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address, coin) DO UPDATE SET
			entry_price = EXCLUDED.entry_price,
			position_size = EXCLUDED.position_size,
			leverage = EXCLUDED.leverage,
			liquidation_price = EXCLUDED.liquidation_price,
			margin_used = EXCLUDED.margin_used,
			position_value = EXCLUDED.position_value,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			last_updated = EXCLUDED.last_updated
		RETURNING id`

	if position.LastUpdated.IsZero() {
		position.LastUpdated = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		position.Address,
		position.Coin,
		position.EntryPrice,
		position.Size,
		position.Leverage,
		position.LiquidationPrice,
		position.MarginUsed,
		position.PositionValue,
		position.UnrealizedPnl,
		position.LastUpdated,
	).Scan(&position.ID)
}

const positionColumns = `
	p.id, p.address, COALESCE(e.name, ''), COALESCE(e.twitter, ''), p.coin,
	p.entry_price, p.position_size, p.leverage, p.liquidation_price,
	p.margin_used, p.position_value, p.unrealized_pnl, p.last_updated`

func scanPosition(rows *sql.Rows) (models.Position, error) {
	var p models.Position
	err := rows.Scan(
		&p.ID,
		&p.Address,
		&p.EntityName,
		&p.Twitter,
		&p.Coin,
		&p.EntryPrice,
		&p.Size,
		&p.Leverage,
		&p.LiquidationPrice,
		&p.MarginUsed,
		&p.PositionValue,
		&p.UnrealizedPnl,
		&p.LastUpdated,
	)
	return p, err
}

// GetAll возвращает все позиции с именами сущностей
func (r *PositionRepository) GetAll() ([]models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		LEFT JOIN entities e ON e.address = p.address
		ORDER BY p.address, p.coin`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// GetByAddress возвращает позиции одного адреса
func (r *PositionRepository) GetByAddress(address string) ([]models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		LEFT JOIN entities e ON e.address = p.address
		WHERE p.address = $1
		ORDER BY p.coin`

	rows, err := r.db.Query(query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// GetByID возвращает позицию по id
func (r *PositionRepository) GetByID(id int) (*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		LEFT JOIN entities e ON e.address = p.address
		WHERE p.id = $1`

	var p models.Position
	err := r.db.QueryRow(query, id).Scan(
		&p.ID,
		&p.Address,
		&p.EntityName,
		&p.Twitter,
		&p.Coin,
		&p.EntryPrice,
		&p.Size,
		&p.Leverage,
		&p.LiquidationPrice,
		&p.MarginUsed,
		&p.PositionValue,
		&p.UnrealizedPnl,
		&p.LastUpdated,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return &p, nil
}

// DeleteStale удаляет закрытые позиции адреса: всё, чего нет в keepCoins.
// Пустой keepCoins означает, что у адреса не осталось открытых позиций.
// Возвращает id удалённых строк - по ним вычищается журнал алертов.
func (r *PositionRepository) DeleteStale(address string, keepCoins []string) ([]int, error) {
	var rows *sql.Rows
	var err error

	if len(keepCoins) == 0 {
		rows, err = r.db.Query(`DELETE FROM positions WHERE address = $1 RETURNING id`, address)
	} else {
		rows, err = r.db.Query(
			`DELETE FROM positions WHERE address = $1 AND NOT (coin = ANY($2)) RETURNING id`,
			address,
			pq.Array(keepCoins),
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Count возвращает количество отслеживаемых позиций
func (r *PositionRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&count)
	return count, err
}

// CountUpdatedSince возвращает количество позиций, обновлённых после
// указанного момента
func (r *PositionRepository) CountUpdatedSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM positions WHERE last_updated >= $1`, since).Scan(&count)
	return count, err
}

// LastUpdatedAt возвращает время последнего обновления любой позиции.
// Используется health монитором для детекции остановившейся синхронизации.
func (r *PositionRepository) LastUpdatedAt() (time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRow(`SELECT MAX(last_updated) FROM positions`).Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}
