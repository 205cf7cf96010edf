package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/jd0713/schadenfreude/internal/api"
	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/internal/hyperliquid"
	"github.com/jd0713/schadenfreude/internal/monitor"
	"github.com/jd0713/schadenfreude/internal/repository"
	"github.com/jd0713/schadenfreude/internal/service"
	"github.com/jd0713/schadenfreude/internal/websocket"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

func main() {
	// .env опционален: в production переменные приходят из окружения
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		bootstrap := utils.InitLogger(utils.LogConfig{})
		bootstrap.Fatal("failed to load config", utils.Err(err))
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer log.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	entityRepo := repository.NewEntityRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Клиент Hyperliquid
	client := hyperliquid.NewClient(cfg.Hyperliquid, log)

	// WebSocket hub для real-time рассылки
	hub := websocket.NewHub(log)
	hub.Start()

	// Инициализация сервисов
	fetcherService := service.NewFetcherService(client, entityRepo, positionRepo, alertRepo, hub, log)
	positionService := service.NewPositionService(client, entityRepo, positionRepo, alertRepo, log)
	entityService := service.NewEntityService(entityRepo, log)

	ctx, cancel := context.WithCancel(context.Background())

	// Тиринговый планировщик переопроса позиций
	scheduler := monitor.NewScheduler(cfg.Monitor, fetcherService, log)
	scheduler.Start(ctx)

	// Мониторинг здоровья компонентов
	health := monitor.NewHealthMonitor(cfg.Health, client, db, positionRepo, log)
	health.Start(ctx)

	// Периодическая рассылка статистики подписчикам
	statsDone := make(chan struct{})
	go broadcastStats(ctx, cfg.Monitor.StatsInterval, positionService, hub, statsDone, log)

	// Очистка старых записей журнала алертов
	go pruneAlerts(ctx, alertRepo, cfg.Monitor.AlertRetention, log)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Positions: positionService,
		Risky:     fetcherService,
		Entities:  entityService,
		Stats:     positionService,
		Syncer:    fetcherService,
		Scheduler: scheduler,
		Health:    health,

		Hub:            hub,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Сначала останавливаем фоновые циклы, затем HTTP
	cancel()
	scheduler.Stop()
	health.Stop()
	<-statsDone
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", utils.Err(err))
	}

	log.Info("server exited")
}

// broadcastStats периодически рассылает агрегированную статистику
// подключённым WebSocket клиентам
func broadcastStats(
	ctx context.Context,
	interval time.Duration,
	positions *service.PositionService,
	hub *websocket.Hub,
	done chan<- struct{},
	log *utils.Logger,
) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}
			stats, err := positions.GetStats(ctx)
			if err != nil {
				log.Warn("failed to collect stats for broadcast", utils.Err(err))
				continue
			}
			hub.BroadcastStats(*stats)
		}
	}
}

// pruneAlerts раз в час удаляет алерты старше retention.
// Нулевой retention отключает очистку.
func pruneAlerts(ctx context.Context, alerts *repository.AlertRepository, retention time.Duration, log *utils.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := alerts.DeleteOlderThan(retention)
			if err != nil {
				log.Warn("alert retention sweep failed", utils.Err(err))
				continue
			}
			if deleted > 0 {
				log.Info("old alerts pruned", utils.Int64("deleted", deleted))
			}
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
