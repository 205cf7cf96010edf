package monitor

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/internal/risk"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

// Syncer - синхронизация позиций (реализуется service.FetcherService)
type Syncer interface {
	FetchAll(ctx context.Context) (*models.SyncResult, []models.Position, error)
	FetchAddresses(ctx context.Context, addresses []string) (*models.SyncResult, []models.Position, error)
}

// SchedulerStats - снимок состояния планировщика
type SchedulerStats struct {
	TrackedPositions    int               `json:"tracked_positions"`
	Tiers               models.TierCounts `json:"tiers"`
	QueueSize           int               `json:"queue_size"`
	LastFullSync        time.Time         `json:"last_full_sync"`
	CyclesTotal         int64             `json:"cycles_total"`
	CyclesFailed        int64             `json:"cycles_failed"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
}

// Scheduler - тиринговый планировщик переопроса позиций.
//
// Чем ближе позиция к ликвидации, тем чаще её адрес опрашивается:
// critical раз в 10с, danger раз в 30с, warning раз в 60с, safe раз
// в 5 минут (интервалы настраиваются). Каждые FullSyncInterval
// выполняется полная ресинхронизация всех адресов - она подхватывает
// новые позиции и вычищает трекеры закрытых.
//
// Жизненный цикл: NewScheduler -> Start -> Stop. Без глобального
// состояния, планировщик конструируется со своими зависимостями.
type Scheduler struct {
	cfg    config.MonitorConfig
	syncer Syncer
	log    *utils.Logger

	mu    sync.Mutex
	items map[string]*trackedPosition // ключ address_coin
	queue updateQueue

	lastFullSync        time.Time
	lastStatsLog        time.Time
	cyclesTotal         int64
	cyclesFailed        int64
	consecutiveFailures int

	// Защита от повторного входа: если синхронизация ещё идёт,
	// очередной тик пропускается, а не ставится в очередь
	syncing int32

	stopCh chan struct{}
	doneCh chan struct{}

	// Подменяется в тестах
	now func() time.Time
}

// NewScheduler создаёт планировщик
func NewScheduler(cfg config.MonitorConfig, syncer Syncer, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		syncer: syncer,
		log:    logger.WithComponent("scheduler"),
		items:  make(map[string]*trackedPosition),
		queue:  make(updateQueue, 0),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start запускает цикл планировщика в фоне
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop останавливает планировщик и дожидается завершения цикла
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	s.log.Info("scheduler started",
		utils.String("tick", s.cfg.TickInterval.String()),
		utils.String("full_sync", s.cfg.FullSyncInterval.String()),
	)

	// Начальная синхронизация наполняет очередь
	s.fullSync(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped: context cancelled")
			return
		case <-s.stopCh:
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// tick - один шаг планировщика
func (s *Scheduler) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.syncing, 0, 1) {
		s.log.Debug("previous sync still running, skipping tick")
		return
	}
	defer atomic.StoreInt32(&s.syncing, 0)

	now := s.now()

	s.mu.Lock()
	fullSyncDue := now.Sub(s.lastFullSync) >= s.cfg.FullSyncInterval
	s.mu.Unlock()

	if fullSyncDue {
		s.fullSync(ctx)
		s.maybeLogStats(now)
		return
	}

	due := s.popDue(now)
	if len(due) > 0 {
		ObserveDueBatch(len(due))
		s.syncAddresses(ctx, due)
	}

	s.maybeLogStats(now)
}

// popDue извлекает из очереди все просроченные позиции и возвращает
// их адреса без дубликатов. Состояние аккаунта приходит целиком,
// поэтому единица опроса - адрес, а не отдельная позиция.
func (s *Scheduler) popDue(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var addresses []string

	for s.queue.Len() > 0 && !s.queue[0].NextUpdate.After(now) {
		item := heap.Pop(&s.queue).(*trackedPosition)
		if !seen[item.Address] {
			seen[item.Address] = true
			addresses = append(addresses, item.Address)
		}
	}

	// Остальные трекеры этих адресов тоже выходят из очереди:
	// их позиции обновятся тем же запросом
	if len(addresses) > 0 {
		for _, item := range s.items {
			if seen[item.Address] && item.index >= 0 {
				heap.Remove(&s.queue, item.index)
			}
		}
	}

	return addresses
}

// fullSync - полная ресинхронизация всех отслеживаемых адресов
func (s *Scheduler) fullSync(ctx context.Context) {
	started := s.now()

	result, enriched, err := s.syncer.FetchAll(ctx)
	if err != nil {
		s.recordFailure(err)
		return
	}

	s.mu.Lock()
	// Пересборка: уходят закрытые позиции и устаревшие трекеры.
	// Трекеры недоступных адресов и монет без цены переживают её.
	s.rebuildLocked(nil, result, enriched)
	s.lastFullSync = s.now()
	s.mu.Unlock()

	s.recordSuccess(result, started)

	s.log.Info("full sync completed",
		utils.Int("positions", len(enriched)),
		utils.Int("updated", result.PositionsUpdated),
		utils.Int("failed", result.PositionsFailed),
	)
}

// syncAddresses синхронизирует только просроченные адреса
func (s *Scheduler) syncAddresses(ctx context.Context, addresses []string) {
	started := s.now()

	result, enriched, err := s.syncer.FetchAddresses(ctx, addresses)
	if err != nil {
		s.recordFailure(err)
		s.requeue(addresses)
		return
	}

	requested := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		requested[address] = true
	}

	s.mu.Lock()
	s.rebuildLocked(requested, result, enriched)
	s.mu.Unlock()

	s.recordSuccess(result, started)
}

// rebuildLocked пересобирает трекеры по итогам синхронизации.
// requested ограничивает пересборку адресами пачки, nil - все адреса.
//
// С нуля пересобираются только адреса, состояние которых реально
// получено: отсутствие данных не означает закрытие позиции. Трекер
// недоступного адреса сохраняет тир и уходит на повтор на следующем
// тике, трекер монеты без текущей цены - на обычный интервал своего
// тира. Вызывается под s.mu.
func (s *Scheduler) rebuildLocked(requested map[string]bool, result *models.SyncResult, enriched []models.Position) {
	now := s.now()

	failed := make(map[string]bool, len(result.FailedAddresses))
	for _, address := range result.FailedAddresses {
		failed[address] = true
	}

	unpriced := make(map[string]bool)
	for address, coins := range result.UnpricedCoins {
		for _, coin := range coins {
			unpriced[address+"_"+coin] = true
		}
	}

	previous := make(map[string]risk.Tier)
	for key, item := range s.items {
		if requested != nil && !requested[item.Address] {
			continue
		}
		switch {
		case failed[item.Address]:
			s.rescheduleLocked(item, now.Add(s.cfg.TickInterval))
		case unpriced[key]:
			s.rescheduleLocked(item, now.Add(s.interval(item.Tier)))
		default:
			previous[key] = item.Tier
			if item.index >= 0 {
				heap.Remove(&s.queue, item.index)
			}
			delete(s.items, key)
		}
	}

	s.insertLocked(enriched, previous)
}

// rescheduleLocked возвращает трекер в очередь с новым сроком.
// Вызывается под s.mu.
func (s *Scheduler) rescheduleLocked(item *trackedPosition, next time.Time) {
	item.NextUpdate = next
	if item.index >= 0 {
		heap.Fix(&s.queue, item.index)
	} else {
		heap.Push(&s.queue, item)
	}
}

// insertLocked добавляет трекеры для обогащённых позиций.
// previous содержит тиры до синхронизации для логирования переходов.
// Вызывается под s.mu.
func (s *Scheduler) insertLocked(positions []models.Position, previous map[string]risk.Tier) {
	now := s.now()

	for _, p := range positions {
		tier := risk.Tier(p.RiskTier)

		item := &trackedPosition{
			Address:    p.Address,
			Coin:       p.Coin,
			Tier:       tier,
			Distance:   p.LiquidationDistance,
			NextUpdate: now.Add(s.interval(tier)),
		}

		if previous != nil {
			if old, ok := previous[item.key()]; ok && old != tier && tier == risk.TierCritical {
				s.log.Warn("position entered critical tier",
					utils.Address(p.Address),
					utils.Coin(p.Coin),
					utils.Distance(p.LiquidationDistance),
					utils.Price(p.CurrentPrice),
				)
			}
		}

		s.items[item.key()] = item
		heap.Push(&s.queue, item)
	}

	s.updateGaugesLocked()
}

// requeue возвращает трекеры адресов в очередь после неудачной
// синхронизации - повтор на следующем тике
func (s *Scheduler) requeue(addresses []string) {
	failed := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		failed[address] = true
	}

	retryAt := s.now().Add(s.cfg.TickInterval)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if failed[item.Address] && item.index < 0 {
			item.NextUpdate = retryAt
			heap.Push(&s.queue, item)
		}
	}
}

// interval возвращает интервал переопроса для тира
func (s *Scheduler) interval(tier risk.Tier) time.Duration {
	switch tier {
	case risk.TierCritical:
		return s.cfg.CriticalInterval
	case risk.TierDanger:
		return s.cfg.DangerInterval
	case risk.TierWarning:
		return s.cfg.WarningInterval
	default:
		return s.cfg.SafeInterval
	}
}

func (s *Scheduler) recordSuccess(result *models.SyncResult, started time.Time) {
	duration := s.now().Sub(started)

	s.mu.Lock()
	s.cyclesTotal++
	if result.Success {
		s.consecutiveFailures = 0
	} else {
		// Частичный провал не сбрасывает счётчик, но и не наращивает
		s.cyclesFailed++
	}
	s.mu.Unlock()

	RecordSyncCycle(result.Success, duration, result.PositionsUpdated)
}

func (s *Scheduler) recordFailure(err error) {
	s.mu.Lock()
	s.cyclesTotal++
	s.cyclesFailed++
	s.consecutiveFailures++
	failures := s.consecutiveFailures
	s.mu.Unlock()

	RecordSyncCycle(false, 0, 0)

	if failures >= s.cfg.MaxCycleFailures {
		s.log.Error("sync repeatedly failing",
			utils.Int("consecutive_failures", failures),
			utils.Err(err),
		)
	} else {
		s.log.Warn("sync cycle failed", utils.Err(err))
	}
}

// updateGaugesLocked обновляет gauge-метрики. Вызывается под s.mu.
func (s *Scheduler) updateGaugesLocked() {
	counts := s.tierCountsLocked()
	SetTierGauge(string(risk.TierCritical), counts.Critical)
	SetTierGauge(string(risk.TierDanger), counts.Danger)
	SetTierGauge(string(risk.TierWarning), counts.Warning)
	SetTierGauge(string(risk.TierSafe), counts.Safe)
	SetQueueSize(s.queue.Len())
}

func (s *Scheduler) tierCountsLocked() models.TierCounts {
	var counts models.TierCounts
	for _, item := range s.items {
		switch item.Tier {
		case risk.TierCritical:
			counts.Critical++
		case risk.TierDanger:
			counts.Danger++
		case risk.TierWarning:
			counts.Warning++
		default:
			counts.Safe++
		}
	}
	return counts
}

// maybeLogStats периодически логирует распределение по тирам
func (s *Scheduler) maybeLogStats(now time.Time) {
	s.mu.Lock()
	if now.Sub(s.lastStatsLog) < s.cfg.StatsInterval {
		s.mu.Unlock()
		return
	}
	s.lastStatsLog = now
	counts := s.tierCountsLocked()
	queueSize := s.queue.Len()
	s.mu.Unlock()

	s.log.Info("tracking stats",
		utils.Int("critical", counts.Critical),
		utils.Int("danger", counts.Danger),
		utils.Int("warning", counts.Warning),
		utils.Int("safe", counts.Safe),
		utils.Int("queue", queueSize),
	)
}

// Stats возвращает снимок состояния планировщика
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStats{
		TrackedPositions:    len(s.items),
		Tiers:               s.tierCountsLocked(),
		QueueSize:           s.queue.Len(),
		LastFullSync:        s.lastFullSync,
		CyclesTotal:         s.cyclesTotal,
		CyclesFailed:        s.cyclesFailed,
		ConsecutiveFailures: s.consecutiveFailures,
	}
}
