// Package api - HTTP маршруты и их зависимости
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jd0713/schadenfreude/internal/api/handlers"
	"github.com/jd0713/schadenfreude/internal/api/middleware"
	"github.com/jd0713/schadenfreude/internal/websocket"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Positions handlers.PositionReader
	Risky     handlers.RiskyPositionReader
	Entities  handlers.EntityStore
	Stats     handlers.StatsReader
	Syncer    handlers.SyncTrigger
	Scheduler handlers.SchedulerStatsProvider
	Health    handlers.HealthReporter

	Hub    *websocket.Hub
	Logger *utils.Logger

	// Разрешённые Origin для CORS и WebSocket (comma-separated, "*" - все)
	AllowedOrigins string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /positions
//	│   ├── GET / - все позиции (фильтры: risk_level, coin, sort_by, sort_order)
//	│   ├── GET /risky - позиции в опасной зоне (min_risk_level)
//	│   └── GET /{address} - позиции одного адреса
//	├── /entities
//	│   ├── GET / - список отслеживаемых сущностей
//	│   ├── POST / - массовый импорт адресов
//	│   └── DELETE /{address} - убрать из отслеживания
//	├── /alerts
//	│   └── GET / - последние алерты ликвидации
//	├── /prices
//	│   └── GET / - текущие mid-цены
//	├── /stats
//	│   └── GET / - агрегированная статистика
//	├── /sync
//	│   └── POST / - принудительная полная синхронизация
//	└── /monitor
//	    ├── GET /stats - состояние планировщика
//	    └── GET /health - состояние компонентов
//
// /ws - WebSocket для real-time обновлений
// /health - health check компонентов
// /metrics - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	positionHandler := handlers.NewPositionHandler(deps.Positions, deps.Risky)
	entityHandler := handlers.NewEntityHandler(deps.Entities)
	statsHandler := handlers.NewStatsHandler(deps.Stats)
	monitorHandler := handlers.NewMonitorHandler(deps.Syncer, deps.Scheduler, deps.Health)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// /positions/risky регистрируется раньше /positions/{address}
	api.HandleFunc("/positions", positionHandler.GetPositions).Methods("GET")
	api.HandleFunc("/positions/risky", positionHandler.GetRiskyPositions).Methods("GET")
	api.HandleFunc("/positions/{address}", positionHandler.GetPositionsByAddress).Methods("GET")

	api.HandleFunc("/entities", entityHandler.GetEntities).Methods("GET")
	api.HandleFunc("/entities", entityHandler.ImportEntities).Methods("POST")
	api.HandleFunc("/entities/{address}", entityHandler.DeleteEntity).Methods("DELETE")

	api.HandleFunc("/alerts", statsHandler.GetAlerts).Methods("GET")
	api.HandleFunc("/prices", statsHandler.GetPrices).Methods("GET")
	api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")

	api.HandleFunc("/sync", monitorHandler.TriggerSync).Methods("POST")
	api.HandleFunc("/monitor/stats", monitorHandler.GetSchedulerStats).Methods("GET")
	api.HandleFunc("/monitor/health", monitorHandler.GetHealth).Methods("GET")

	// WebSocket route
	if deps.Hub != nil {
		upgrader := websocket.Upgrader(websocket.NewOriginChecker(deps.AllowedOrigins))
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, upgrader, w, r)
		})
	}

	// Health check endpoint
	router.HandleFunc("/health", monitorHandler.GetHealth).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
