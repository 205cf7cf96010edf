package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// Имена проверяемых компонентов
const (
	ComponentPrivateAPI = "hyperliquid-private-api"
	ComponentPublicAPI  = "hyperliquid-public-api"
	ComponentDatabase   = "database"
	ComponentSync       = "position-sync"
)

// Синхронизация считается остановившейся, если ни одна позиция
// не обновлялась дольше этого времени
const syncStaleThreshold = 5 * time.Minute

// Pinger - проверка доступности Hyperliquid endpoint'ов
type Pinger interface {
	PingPrivate(ctx context.Context) error
	PingPublic(ctx context.Context) error
}

// DBPinger - проверка доступности БД (*sql.DB подходит напрямую)
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// SyncProbe - время последнего обновления позиций
type SyncProbe interface {
	LastUpdatedAt() (time.Time, error)
}

type componentState struct {
	status      string
	failures    int
	lastError   string
	lastChecked time.Time
}

// HealthMonitor периодически проверяет компоненты системы.
//
// Правила статусов по подряд неудачным проверкам:
// 0 или 1 - up (одиночный сбой не считается), 2+ - degraded,
// AlertThreshold и больше - down. Компонент position-sync дополнительно
// деградирует, когда позиции давно не обновлялись.
type HealthMonitor struct {
	cfg       config.HealthConfig
	client    Pinger
	db        DBPinger
	positions SyncProbe
	log       *utils.Logger

	mu         sync.RWMutex
	components map[string]*componentState

	stopCh chan struct{}
	doneCh chan struct{}

	now func() time.Time
}

// NewHealthMonitor создаёт монитор здоровья
func NewHealthMonitor(
	cfg config.HealthConfig,
	client Pinger,
	db DBPinger,
	positions SyncProbe,
	logger *utils.Logger,
) *HealthMonitor {
	components := make(map[string]*componentState)
	for _, name := range []string{ComponentPrivateAPI, ComponentPublicAPI, ComponentDatabase, ComponentSync} {
		components[name] = &componentState{status: models.StatusUp}
	}

	return &HealthMonitor{
		cfg:        cfg,
		client:     client,
		db:         db,
		positions:  positions,
		log:        logger.WithComponent("health"),
		components: components,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start запускает цикл проверок в фоне
func (h *HealthMonitor) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop останавливает монитор
func (h *HealthMonitor) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

func (h *HealthMonitor) run(ctx context.Context) {
	defer close(h.doneCh)

	h.runChecks(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.runChecks(ctx)
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		}
	}
}

// runChecks выполняет один раунд проверок всех компонентов
func (h *HealthMonitor) runChecks(ctx context.Context) {
	h.record(ComponentPrivateAPI, h.client.PingPrivate(ctx))
	h.record(ComponentPublicAPI, h.client.PingPublic(ctx))
	h.record(ComponentDatabase, h.db.PingContext(ctx))
	h.checkSync()
}

// record фиксирует результат проверки и пересчитывает статус
func (h *HealthMonitor) record(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.components[name]
	state.lastChecked = h.now()

	if err == nil {
		if state.failures > 0 {
			h.log.Info("component recovered", utils.Component(name))
		}
		state.failures = 0
		state.lastError = ""
		state.status = models.StatusUp
		SetComponentHealth(name, state.status)
		return
	}

	state.failures++
	state.lastError = err.Error()

	switch {
	case state.failures >= h.cfg.AlertThreshold:
		if state.status != models.StatusDown {
			h.log.Error("component is down",
				utils.Component(name),
				utils.Int("consecutive_failures", state.failures),
				utils.Err(err),
			)
		}
		state.status = models.StatusDown
	case state.failures >= 2:
		state.status = models.StatusDegraded
		h.log.Warn("component degraded",
			utils.Component(name),
			utils.Int("consecutive_failures", state.failures),
			utils.Err(err),
		)
	default:
		// Одиночный сбой не меняет статус
	}

	SetComponentHealth(name, state.status)
}

// checkSync проверяет, что синхронизация позиций не остановилась
func (h *HealthMonitor) checkSync() {
	last, err := h.positions.LastUpdatedAt()
	if err != nil {
		h.record(ComponentSync, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.components[ComponentSync]
	state.lastChecked = h.now()
	state.failures = 0
	state.lastError = ""

	// Пустая БД - синхронизировать нечего, это не сбой
	if !last.IsZero() && h.now().Sub(last) > syncStaleThreshold {
		state.status = models.StatusDegraded
		state.lastError = "no position updated in " + syncStaleThreshold.String()
		h.log.Warn("position sync is stale",
			utils.String("last_update", last.Format(time.RFC3339)),
		)
	} else {
		state.status = models.StatusUp
	}

	SetComponentHealth(ComponentSync, state.status)
}

// Report возвращает сводное состояние всех компонентов.
// Общий статус - худший среди компонентов.
func (h *HealthMonitor) Report() models.HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := models.HealthReport{
		Status:    models.StatusUp,
		CheckedAt: h.now(),
	}

	for _, name := range []string{ComponentPrivateAPI, ComponentPublicAPI, ComponentDatabase, ComponentSync} {
		state := h.components[name]
		report.Components = append(report.Components, models.ComponentHealth{
			Name:                name,
			Status:              state.status,
			ConsecutiveFailures: state.failures,
			LastCheckedAt:       state.lastChecked,
			LastError:           state.lastError,
		})

		if worse(state.status, report.Status) {
			report.Status = state.status
		}
	}

	return report
}

func worse(a, b string) bool {
	rank := map[string]int{
		models.StatusUp:       0,
		models.StatusDegraded: 1,
		models.StatusDown:     2,
	}
	return rank[a] > rank[b]
}
