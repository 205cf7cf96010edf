// Package monitor - тиринговый планировщик синхронизации и мониторинг
// здоровья компонентов.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Prometheus. Регистрируются автоматически через promauto.
var (
	syncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqmon_sync_cycles_total",
		Help: "Total number of sync cycles by result",
	}, []string{"result"})

	syncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liqmon_sync_duration_seconds",
		Help:    "Duration of sync cycles",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	positionsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liqmon_positions_updated_total",
		Help: "Total number of position upserts",
	})

	positionsTracked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "liqmon_positions_tracked",
		Help: "Number of tracked positions by risk tier",
	}, []string{"tier"})

	alertsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqmon_alerts_recorded_total",
		Help: "Total number of liquidation alerts recorded",
	}, []string{"tier"})

	componentHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "liqmon_component_health",
		Help: "Component health: 1 = up, 0.5 = degraded, 0 = down",
	}, []string{"component"})

	schedulerQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liqmon_scheduler_queue_size",
		Help: "Number of positions in the scheduler queue",
	})

	dueBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liqmon_due_batch_size",
		Help:    "Number of addresses polled per scheduler tick",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// RecordSyncCycle фиксирует завершение цикла синхронизации
func RecordSyncCycle(success bool, duration time.Duration, positionsUpdated int) {
	result := "success"
	if !success {
		result = "failure"
	}
	syncCyclesTotal.WithLabelValues(result).Inc()
	syncDurationSeconds.Observe(duration.Seconds())
	positionsUpdatedTotal.Add(float64(positionsUpdated))
}

// RecordAlert фиксирует записанный алерт
func RecordAlert(tier string) {
	alertsRecordedTotal.WithLabelValues(tier).Inc()
}

// SetTierGauge выставляет количество отслеживаемых позиций тира
func SetTierGauge(tier string, count int) {
	positionsTracked.WithLabelValues(tier).Set(float64(count))
}

// SetQueueSize выставляет размер очереди планировщика
func SetQueueSize(n int) {
	schedulerQueueSize.Set(float64(n))
}

// ObserveDueBatch фиксирует размер пачки просроченных адресов за тик
func ObserveDueBatch(n int) {
	dueBatchSize.Observe(float64(n))
}

// SetComponentHealth выставляет метрику здоровья компонента
func SetComponentHealth(component, status string) {
	var value float64
	switch status {
	case "up":
		value = 1
	case "degraded":
		value = 0.5
	default:
		value = 0
	}
	componentHealth.WithLabelValues(component).Set(value)
}
