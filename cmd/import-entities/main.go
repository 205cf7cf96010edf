package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/repository"
	"github.com/jd0713/schadenfreude/internal/service"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Одноразовый импорт отслеживаемых адресов из JSON файла.
//
// Формат файла - массив сущностей:
//
//	[{"address": "0x...", "name": "Whale Fund", "entity_type": "fund", "twitter": "...", "chain": "ethereum"}]
//
// Повторный запуск безопасен: существующие адреса обновляются (upsert).
func main() {
	file := flag.String("file", "entities.json", "path to entities JSON file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootstrap := utils.InitLogger(utils.LogConfig{})
		bootstrap.Fatal("failed to load config", utils.Err(err))
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: "text",
	})
	defer log.Sync()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("failed to read entities file", utils.String("file", *file), utils.Err(err))
	}

	var entities []models.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		log.Fatal("failed to parse entities file", utils.String("file", *file), utils.Err(err))
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	entityService := service.NewEntityService(repository.NewEntityRepository(db), log)

	imported, errs := entityService.Import(entities)

	for _, e := range errs {
		log.Warn("entity skipped", utils.String("reason", e))
	}

	log.Info("import finished",
		utils.String("file", *file),
		utils.Int("total", len(entities)),
		utils.Int("imported", imported),
		utils.Int("skipped", len(errs)))

	if imported == 0 && len(entities) > 0 {
		os.Exit(1)
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
