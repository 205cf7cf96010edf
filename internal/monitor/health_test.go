package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/internal/models"
)

type mockPinger struct {
	privateErr error
	publicErr  error
}

func (m *mockPinger) PingPrivate(_ context.Context) error { return m.privateErr }
func (m *mockPinger) PingPublic(_ context.Context) error  { return m.publicErr }

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) PingContext(_ context.Context) error { return m.err }

type mockSyncProbe struct {
	last time.Time
	err  error
}

func (m *mockSyncProbe) LastUpdatedAt() (time.Time, error) { return m.last, m.err }

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		CheckInterval:  time.Minute,
		AlertThreshold: 5,
	}
}

// newTestHealthMonitor возвращает монитор с управляемыми часами
func newTestHealthMonitor(pinger *mockPinger, db *mockDBPinger, probe *mockSyncProbe) (*HealthMonitor, *time.Time) {
	h := NewHealthMonitor(testHealthConfig(), pinger, db, probe, testLogger())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return current }
	return h, &current
}

func componentByName(t *testing.T, report models.HealthReport, name string) models.ComponentHealth {
	t.Helper()
	for _, c := range report.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %s not found in report", name)
	return models.ComponentHealth{}
}

func TestHealthAllUp(t *testing.T) {
	probe := &mockSyncProbe{}
	h, clock := newTestHealthMonitor(&mockPinger{}, &mockDBPinger{}, probe)
	probe.last = *clock

	h.runChecks(context.Background())

	report := h.Report()
	if report.Status != models.StatusUp {
		t.Errorf("overall status = %s, expected up", report.Status)
	}
	if len(report.Components) != 4 {
		t.Fatalf("components = %d, expected 4", len(report.Components))
	}
	for _, c := range report.Components {
		if c.Status != models.StatusUp {
			t.Errorf("component %s status = %s, expected up", c.Name, c.Status)
		}
		if c.LastCheckedAt.IsZero() {
			t.Errorf("component %s LastCheckedAt should be set", c.Name)
		}
	}
}

func TestHealthFailureThresholds(t *testing.T) {
	pinger := &mockPinger{privateErr: errors.New("connection refused")}
	h, _ := newTestHealthMonitor(pinger, &mockDBPinger{}, &mockSyncProbe{})

	// Одиночный сбой статус не меняет
	h.runChecks(context.Background())

	c := componentByName(t, h.Report(), ComponentPrivateAPI)
	if c.Status != models.StatusUp {
		t.Errorf("status after 1 failure = %s, expected up", c.Status)
	}
	if c.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, expected 1", c.ConsecutiveFailures)
	}

	// Второй подряд - degraded
	h.runChecks(context.Background())

	c = componentByName(t, h.Report(), ComponentPrivateAPI)
	if c.Status != models.StatusDegraded {
		t.Errorf("status after 2 failures = %s, expected degraded", c.Status)
	}

	// Достигли AlertThreshold - down
	for i := 0; i < 3; i++ {
		h.runChecks(context.Background())
	}

	c = componentByName(t, h.Report(), ComponentPrivateAPI)
	if c.Status != models.StatusDown {
		t.Errorf("status after 5 failures = %s, expected down", c.Status)
	}
	if c.LastError != "connection refused" {
		t.Errorf("LastError = %q, expected connection refused", c.LastError)
	}
}

func TestHealthRecovery(t *testing.T) {
	pinger := &mockPinger{publicErr: errors.New("timeout")}
	h, _ := newTestHealthMonitor(pinger, &mockDBPinger{}, &mockSyncProbe{})

	for i := 0; i < 3; i++ {
		h.runChecks(context.Background())
	}

	pinger.publicErr = nil
	h.runChecks(context.Background())

	c := componentByName(t, h.Report(), ComponentPublicAPI)
	if c.Status != models.StatusUp {
		t.Errorf("status after recovery = %s, expected up", c.Status)
	}
	if c.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, expected 0 after recovery", c.ConsecutiveFailures)
	}
	if c.LastError != "" {
		t.Errorf("LastError = %q, expected empty after recovery", c.LastError)
	}
}

func TestHealthSyncStale(t *testing.T) {
	probe := &mockSyncProbe{}
	h, clock := newTestHealthMonitor(&mockPinger{}, &mockDBPinger{}, probe)

	// Свежие обновления - up
	probe.last = clock.Add(-time.Minute)
	h.runChecks(context.Background())

	c := componentByName(t, h.Report(), ComponentSync)
	if c.Status != models.StatusUp {
		t.Errorf("status with fresh updates = %s, expected up", c.Status)
	}

	// Обновлений не было дольше порога - degraded
	probe.last = clock.Add(-10 * time.Minute)
	h.runChecks(context.Background())

	c = componentByName(t, h.Report(), ComponentSync)
	if c.Status != models.StatusDegraded {
		t.Errorf("status with stale updates = %s, expected degraded", c.Status)
	}
	if c.LastError == "" {
		t.Error("LastError should describe the stale sync")
	}
}

func TestHealthSyncEmptyDatabase(t *testing.T) {
	// Пустая БД - нулевое время последнего обновления, это не сбой
	h, _ := newTestHealthMonitor(&mockPinger{}, &mockDBPinger{}, &mockSyncProbe{})

	h.runChecks(context.Background())

	c := componentByName(t, h.Report(), ComponentSync)
	if c.Status != models.StatusUp {
		t.Errorf("status with empty database = %s, expected up", c.Status)
	}
}

func TestHealthSyncProbeError(t *testing.T) {
	probe := &mockSyncProbe{err: errors.New("db query failed")}
	h, _ := newTestHealthMonitor(&mockPinger{}, &mockDBPinger{}, probe)

	h.runChecks(context.Background())
	h.runChecks(context.Background())

	c := componentByName(t, h.Report(), ComponentSync)
	if c.Status != models.StatusDegraded {
		t.Errorf("status after probe errors = %s, expected degraded", c.Status)
	}
}

func TestHealthReportWorstStatus(t *testing.T) {
	db := &mockDBPinger{err: errors.New("connection lost")}
	h, _ := newTestHealthMonitor(&mockPinger{}, db, &mockSyncProbe{})

	// БД падает до статуса down, остальные компоненты живы
	for i := 0; i < 5; i++ {
		h.runChecks(context.Background())
	}

	report := h.Report()
	if report.Status != models.StatusDown {
		t.Errorf("overall status = %s, expected down", report.Status)
	}

	c := componentByName(t, report, ComponentDatabase)
	if c.Status != models.StatusDown {
		t.Errorf("database status = %s, expected down", c.Status)
	}
	c = componentByName(t, report, ComponentPrivateAPI)
	if c.Status != models.StatusUp {
		t.Errorf("private api status = %s, expected up", c.Status)
	}
}

func TestHealthStartStop(t *testing.T) {
	probe := &mockSyncProbe{last: time.Now()}
	h := NewHealthMonitor(testHealthConfig(), &mockPinger{}, &mockDBPinger{}, probe, testLogger())

	h.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	h.Stop()

	report := h.Report()
	if report.Status != models.StatusUp {
		t.Errorf("overall status = %s, expected up", report.Status)
	}
}
