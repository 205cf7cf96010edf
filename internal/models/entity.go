package models

import "time"

// Entity представляет отслеживаемого участника рынка (из коллектора Arkham)
type Entity struct {
	Address     string    `json:"address" db:"address"`           // адрес кошелька (PK)
	Name        string    `json:"name" db:"name"`                 // имя сущности
	Twitter     string    `json:"twitter,omitempty" db:"twitter"` // twitter handle (опционально)
	EntityType  string    `json:"entity_type" db:"entity_type"`   // individual, fund, institution
	Chain       string    `json:"chain" db:"chain"`               // ethereum и т.д.
	CollectedAt time.Time `json:"collected_at" db:"collected_at"` // когда адрес был собран
}

// Типы сущностей
const (
	EntityTypeIndividual  = "individual"
	EntityTypeFund        = "fund"
	EntityTypeInstitution = "institution"
)
