package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Hyperliquid HyperliquidConfig
	Monitor     MonitorConfig
	Health      HealthConfig
	Logging     LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string

	// Разрешённые Origin для WebSocket и CORS, через запятую.
	// "*" или пусто - разрешены все (development mode)
	AllowedOrigins string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// HyperliquidConfig - настройки доступа к Hyperliquid API.
// Private URL используется для clearinghouseState (обычно локальная нода),
// Public URL - для allMids (официальный API).
type HyperliquidConfig struct {
	PrivateURL string
	PublicURL  string

	// Параметры батчинга зависят от класса латентности endpoint'а:
	// локальная нода выдерживает большие батчи, публичный API - нет
	BatchSizeLocal   int
	BatchSizeRemote  int
	BatchDelayLocal  time.Duration
	BatchDelayRemote time.Duration

	Timeout time.Duration
}

// MonitorConfig - настройки тирингового планировщика
type MonitorConfig struct {
	TickInterval time.Duration // шаг основного цикла планировщика

	// Интервалы переопроса по тиру риска
	CriticalInterval time.Duration
	DangerInterval   time.Duration
	WarningInterval  time.Duration
	SafeInterval     time.Duration

	FullSyncInterval time.Duration // период полной ресинхронизации всех адресов
	StatsInterval    time.Duration // период логирования статистики цикла
	MaxCycleFailures int           // подряд неудачных циклов до деградации

	AlertRetention time.Duration // возраст хранения алертов, 0 отключает очистку
}

// HealthConfig - настройки мониторинга здоровья компонентов
type HealthConfig struct {
	CheckInterval  time.Duration
	AlertThreshold int // подряд неудачных проверок до статуса down
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),

			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "schadenfreude"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Hyperliquid: HyperliquidConfig{
			PrivateURL: getEnv("HYPERLIQUID_PRIVATE_URL", "http://localhost:3001/info"),
			PublicURL:  getEnv("HYPERLIQUID_PUBLIC_URL", "https://api.hyperliquid.xyz/info"),

			// Локальная нода: большие батчи, малая пауза.
			// Публичный API: маленькие батчи, заметная пауза.
			BatchSizeLocal:   getEnvAsInt("HL_BATCH_SIZE_LOCAL", 500),
			BatchSizeRemote:  getEnvAsInt("HL_BATCH_SIZE_REMOTE", 10),
			BatchDelayLocal:  getEnvAsDuration("HL_BATCH_DELAY_LOCAL", 5*time.Millisecond),
			BatchDelayRemote: getEnvAsDuration("HL_BATCH_DELAY_REMOTE", 100*time.Millisecond),

			Timeout: getEnvAsDuration("HL_TIMEOUT", 10*time.Second),
		},
		Monitor: MonitorConfig{
			TickInterval: getEnvAsDuration("MONITOR_TICK_INTERVAL", 5*time.Second),

			// Чем опаснее позиция, тем чаще опрос
			CriticalInterval: getEnvAsDuration("MONITOR_CRITICAL_INTERVAL", 10*time.Second),
			DangerInterval:   getEnvAsDuration("MONITOR_DANGER_INTERVAL", 30*time.Second),
			WarningInterval:  getEnvAsDuration("MONITOR_WARNING_INTERVAL", 60*time.Second),
			SafeInterval:     getEnvAsDuration("MONITOR_SAFE_INTERVAL", 300*time.Second),

			FullSyncInterval: getEnvAsDuration("MONITOR_FULL_SYNC_INTERVAL", 5*time.Minute),
			StatsInterval:    getEnvAsDuration("MONITOR_STATS_INTERVAL", 60*time.Second),
			MaxCycleFailures: getEnvAsInt("MONITOR_MAX_CYCLE_FAILURES", 5),

			AlertRetention: getEnvAsDuration("MONITOR_ALERT_RETENTION", 30*24*time.Hour),
		},
		Health: HealthConfig{
			CheckInterval:  getEnvAsDuration("HEALTH_CHECK_INTERVAL", 60*time.Second),
			AlertThreshold: getEnvAsInt("HEALTH_ALERT_THRESHOLD", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	// Валидация согласованности интервалов планировщика
	if err := cfg.validateIntervals(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация батчинга
	if c.Hyperliquid.BatchSizeLocal < 1 {
		return fmt.Errorf("HL_BATCH_SIZE_LOCAL must be positive, got %d", c.Hyperliquid.BatchSizeLocal)
	}

	if c.Hyperliquid.BatchSizeRemote < 1 {
		return fmt.Errorf("HL_BATCH_SIZE_REMOTE must be positive, got %d", c.Hyperliquid.BatchSizeRemote)
	}

	if c.Hyperliquid.Timeout <= 0 {
		return fmt.Errorf("HL_TIMEOUT must be positive, got %v", c.Hyperliquid.Timeout)
	}

	if c.Monitor.MaxCycleFailures < 1 {
		return fmt.Errorf("MONITOR_MAX_CYCLE_FAILURES must be at least 1, got %d", c.Monitor.MaxCycleFailures)
	}

	if c.Health.AlertThreshold < 1 {
		return fmt.Errorf("HEALTH_ALERT_THRESHOLD must be at least 1, got %d", c.Health.AlertThreshold)
	}

	return nil
}

// validateIntervals проверяет что интервалы переопроса монотонны по риску:
// critical <= danger <= warning <= safe, и тик не больше минимального интервала
func (c *Config) validateIntervals() error {
	m := c.Monitor

	if m.TickInterval <= 0 {
		return fmt.Errorf("MONITOR_TICK_INTERVAL must be positive, got %v", m.TickInterval)
	}

	if m.CriticalInterval <= 0 {
		return fmt.Errorf("MONITOR_CRITICAL_INTERVAL must be positive, got %v", m.CriticalInterval)
	}

	if m.CriticalInterval > m.DangerInterval ||
		m.DangerInterval > m.WarningInterval ||
		m.WarningInterval > m.SafeInterval {
		return fmt.Errorf("monitor intervals must be ordered critical <= danger <= warning <= safe, got %v/%v/%v/%v",
			m.CriticalInterval, m.DangerInterval, m.WarningInterval, m.SafeInterval)
	}

	if m.TickInterval > m.CriticalInterval {
		return fmt.Errorf("MONITOR_TICK_INTERVAL (%v) must not exceed MONITOR_CRITICAL_INTERVAL (%v)",
			m.TickInterval, m.CriticalInterval)
	}

	return nil
}

// IsLocal определяет, указывает ли private URL на локальную ноду.
// От этого зависят размер батча и пауза между батчами.
func (h HyperliquidConfig) IsLocal() bool {
	return strings.Contains(h.PrivateURL, "localhost") || strings.Contains(h.PrivateURL, "127.0.0.1")
}

// BatchSize возвращает размер батча для текущего класса латентности
func (h HyperliquidConfig) BatchSize() int {
	if h.IsLocal() {
		return h.BatchSizeLocal
	}
	return h.BatchSizeRemote
}

// BatchDelay возвращает паузу между батчами для текущего класса латентности
func (h HyperliquidConfig) BatchDelay() time.Duration {
	if h.IsLocal() {
		return h.BatchDelayLocal
	}
	return h.BatchDelayRemote
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
