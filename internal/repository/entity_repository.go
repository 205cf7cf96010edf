package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jd0713/schadenfreude/internal/models"
)

// Ошибки репозитория сущностей
var (
	ErrEntityNotFound = errors.New("entity not found")
)

// EntityRepository - работа с таблицей entities
type EntityRepository struct {
	db *sql.DB
}

// NewEntityRepository создает новый экземпляр репозитория
func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// Upsert вставляет или обновляет сущность по адресу
func (r *EntityRepository) Upsert(entity *models.Entity) error {
	query := `
		INSERT INTO entities (address, name, twitter, entity_type, chain, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			name = EXCLUDED.name,
			twitter = EXCLUDED.twitter,
			entity_type = EXCLUDED.entity_type,
			chain = EXCLUDED.chain,
			collected_at = EXCLUDED.collected_at`

	if entity.CollectedAt.IsZero() {
		entity.CollectedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		query,
		entity.Address,
		entity.Name,
		entity.Twitter,
		entity.EntityType,
		entity.Chain,
		entity.CollectedAt,
	)

	return err
}

// GetByAddress возвращает сущность по адресу кошелька
func (r *EntityRepository) GetByAddress(address string) (*models.Entity, error) {
	query := `
		SELECT address, name, twitter, entity_type, chain, collected_at
		FROM entities
		WHERE address = $1`

	entity := &models.Entity{}
	err := r.db.QueryRow(query, address).Scan(
		&entity.Address,
		&entity.Name,
		&entity.Twitter,
		&entity.EntityType,
		&entity.Chain,
		&entity.CollectedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}

	return entity, nil
}

// GetAll возвращает все отслеживаемые сущности
func (r *EntityRepository) GetAll() ([]models.Entity, error) {
	query := `
		SELECT address, name, twitter, entity_type, chain, collected_at
		FROM entities
		ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		var entity models.Entity
		err := rows.Scan(
			&entity.Address,
			&entity.Name,
			&entity.Twitter,
			&entity.EntityType,
			&entity.Chain,
			&entity.CollectedAt,
		)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

// GetAddresses возвращает адреса всех отслеживаемых сущностей.
// Это рабочий набор планировщика синхронизации.
func (r *EntityRepository) GetAddresses() ([]string, error) {
	query := `SELECT address FROM entities ORDER BY address`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}

	return addresses, rows.Err()
}

// Count возвращает количество отслеживаемых сущностей
func (r *EntityRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&count)
	return count, err
}

// Delete удаляет сущность по адресу
func (r *EntityRepository) Delete(address string) error {
	result, err := r.db.Exec(`DELETE FROM entities WHERE address = $1`, address)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEntityNotFound
	}

	return nil
}
