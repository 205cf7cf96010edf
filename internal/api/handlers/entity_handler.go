package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/repository"
)

// EntityStore - управление отслеживаемыми сущностями
type EntityStore interface {
	GetAll() ([]models.Entity, error)
	Import(entities []models.Entity) (int, []string)
	Delete(address string) error
}

// EntityHandler обрабатывает HTTP запросы для отслеживаемых сущностей.
//
// Endpoints:
// - GET /api/v1/entities - список сущностей
// - POST /api/v1/entities - массовый импорт адресов
// - DELETE /api/v1/entities/{address} - убрать сущность из отслеживания
type EntityHandler struct {
	entities EntityStore
}

// NewEntityHandler создает новый EntityHandler с внедрением зависимостей.
func NewEntityHandler(entities EntityStore) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// GetEntities возвращает все отслеживаемые сущности.
//
// GET /api/v1/entities
//
// Response 200 OK:
//
//	[
//	  {
//	    "address": "0x...",
//	    "name": "Whale Fund",
//	    "twitter": "whalefund",
//	    "entity_type": "fund",
//	    "chain": "ethereum"
//	  }
//	]
func (h *EntityHandler) GetEntities(w http.ResponseWriter, r *http.Request) {
	if h.entities == nil {
		respondError(w, http.StatusInternalServerError, "entity service not initialized", "")
		return
	}

	entities, err := h.entities.GetAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get entities", err.Error())
		return
	}

	if entities == nil {
		entities = []models.Entity{}
	}

	respondJSON(w, http.StatusOK, entities)
}

// ImportEntities импортирует список сущностей.
//
// POST /api/v1/entities
//
// Request body: JSON массив сущностей. Адреса нормализуются в lowercase,
// некорректные записи пропускаются и возвращаются в errors.
//
// Response 200 OK:
//
//	{"imported": 45, "errors": ["invalid address: 0x12", ...]}
//
// Response 400 Bad Request: некорректный JSON
func (h *EntityHandler) ImportEntities(w http.ResponseWriter, r *http.Request) {
	if h.entities == nil {
		respondError(w, http.StatusInternalServerError, "entity service not initialized", "")
		return
	}

	var entities []models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entities); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	imported, errs := h.entities.Import(entities)

	if errs == nil {
		errs = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
		"errors":   errs,
	})
}

// DeleteEntity убирает сущность из отслеживания.
//
// DELETE /api/v1/entities/{address}
//
// Response 200 OK: {"message": "entity removed"}
// Response 404 Not Found: адрес не отслеживался
func (h *EntityHandler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if h.entities == nil {
		respondError(w, http.StatusInternalServerError, "entity service not initialized", "")
		return
	}

	address := strings.ToLower(mux.Vars(r)["address"])
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		respondError(w, http.StatusBadRequest, "invalid address",
			"expected 0x-prefixed 40-hex-char address")
		return
	}

	if err := h.entities.Delete(address); err != nil {
		if errors.Is(err, repository.ErrEntityNotFound) {
			respondError(w, http.StatusNotFound, "entity not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete entity", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "entity removed"})
}
