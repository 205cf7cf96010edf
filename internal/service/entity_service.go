package service

import (
	"fmt"
	"strings"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// EntityService - управление списком отслеживаемых сущностей
type EntityService struct {
	entities EntityStore
	log      *utils.Logger
}

// NewEntityService создаёт сервис сущностей
func NewEntityService(entities EntityStore, logger *utils.Logger) *EntityService {
	return &EntityService{
		entities: entities,
		log:      logger.WithComponent("entities"),
	}
}

// GetAll возвращает все отслеживаемые сущности
func (s *EntityService) GetAll() ([]models.Entity, error) {
	return s.entities.GetAll()
}

// GetByAddress возвращает сущность по адресу
func (s *EntityService) GetByAddress(address string) (*models.Entity, error) {
	return s.entities.GetByAddress(address)
}

// Delete убирает сущность из отслеживания.
// Её позиции уйдут из БД при следующей полной синхронизации.
func (s *EntityService) Delete(address string) error {
	address = strings.ToLower(strings.TrimSpace(address))

	if err := s.entities.Delete(address); err != nil {
		return err
	}

	s.log.Info("entity removed", utils.Address(address))
	return nil
}

// Import загружает пакет сущностей (например, из entities.json коллектора).
// Невалидные записи пропускаются, остальные импортируются.
// Возвращает количество импортированных и список ошибок.
func (s *EntityService) Import(entities []models.Entity) (int, []string) {
	imported := 0
	var errs []string

	for _, entity := range entities {
		if err := validateEntity(&entity); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", entity.Address, err))
			continue
		}

		if err := s.entities.Upsert(&entity); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", entity.Address, err))
			continue
		}
		imported++
	}

	s.log.Info("entities imported",
		utils.Int("imported", imported),
		utils.Int("failed", len(errs)),
	)

	return imported, errs
}

func validateEntity(e *models.Entity) error {
	e.Address = strings.ToLower(strings.TrimSpace(e.Address))

	if len(e.Address) != 42 || !strings.HasPrefix(e.Address, "0x") {
		return fmt.Errorf("invalid address format")
	}
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.EntityType == "" {
		e.EntityType = models.EntityTypeIndividual
	}
	if e.Chain == "" {
		e.Chain = "ethereum"
	}

	return nil
}
