// Package monitor runs the poll, decide and notify loop.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cptspacemanspiff/power-notify/internal/aggregate"
	"github.com/cptspacemanspiff/power-notify/internal/collector"
	"github.com/cptspacemanspiff/power-notify/internal/notify"
)

const (
	SummaryStatusFailed = "Reading Battery Status Failed!"
	SummaryLevelFailed  = "Reading Battery Level Failed!"
	SummaryCritical     = "Battery Level Critical!"
)

// BatteryReader is the subset of collector.Reader the loop needs.
type BatteryReader interface {
	ReadStatus(id string) (collector.Status, error)
	ReadReading(id string) (collector.EnergyReading, error)
}

// Settings are fixed for the lifetime of a Monitor.
type Settings struct {
	Batteries []string
	Threshold int
	// Timeout applies to the critical notification only; failure
	// notifications always stay until dismissed.
	Timeout  time.Duration
	Interval time.Duration
	Icon     string
}

// BatteryStatus is the outcome of one status read.
type BatteryStatus struct {
	ID     string
	Status collector.Status
	Err    error
}

// Snapshot is everything read during one cycle. It is not kept between cycles.
type Snapshot struct {
	Batteries []BatteryStatus
	Combined  aggregate.Combined
	// LevelErr is set when the combined percentage could not be computed;
	// Combined.Percent is then meaningless.
	LevelErr error
	Alert    bool
}

// Statuses returns the statuses that were read successfully.
func (s Snapshot) Statuses() []collector.Status {
	out := make([]collector.Status, 0, len(s.Batteries))
	for _, b := range s.Batteries {
		if b.Err == nil {
			out = append(out, b.Status)
		}
	}
	return out
}

// Monitor polls batteries and notifies on critical or unreadable state.
type Monitor struct {
	settings Settings
	reader   BatteryReader
	notifier notify.Notifier

	log        *slog.Logger
	batteryLog *slog.Logger
	notifyLog  *slog.Logger
}

// New creates a Monitor. The Batteries slice is copied.
func New(settings Settings, reader BatteryReader, notifier notify.Notifier, logger *slog.Logger) *Monitor {
	settings.Batteries = append([]string(nil), settings.Batteries...)
	return &Monitor{
		settings: settings,
		reader:   reader,
		notifier: notifier,

		log:        logger,
		batteryLog: logger.With("topic", "battery"),
		notifyLog:  logger.With("topic", "notify"),
	}
}

// Sample reads every configured battery once and evaluates the alert rule
// without notifying. All status reads finish before any energy read starts.
func (m *Monitor) Sample() Snapshot {
	return m.sample(nil)
}

// sample calls onStatusErr right after each failed status read.
func (m *Monitor) sample(onStatusErr func(BatteryStatus)) Snapshot {
	var snap Snapshot

	for _, id := range m.settings.Batteries {
		status, err := m.reader.ReadStatus(id)
		b := BatteryStatus{ID: id, Status: status, Err: err}
		snap.Batteries = append(snap.Batteries, b)
		if err != nil && onStatusErr != nil {
			onStatusErr(b)
		}
	}
	snap.Combined.AnyCharging = aggregate.AnyCharging(snap.Statuses())

	percent, err := m.combinedPercent()
	if err != nil {
		snap.LevelErr = err
		return snap
	}
	snap.Combined.Percent = percent
	snap.Alert = snap.Combined.Alert(m.settings.Threshold)
	return snap
}

func (m *Monitor) combinedPercent() (int, error) {
	readings := make([]collector.EnergyReading, 0, len(m.settings.Batteries))
	for _, id := range m.settings.Batteries {
		r, err := m.reader.ReadReading(id)
		if err != nil {
			return 0, err
		}
		readings = append(readings, r)
	}
	return aggregate.CombineEnergy(readings)
}

// Poll runs one cycle. A failure notification goes out as soon as a status
// read fails, another if the level cannot be computed, and the critical
// notification if the alert rule holds.
func (m *Monitor) Poll(ctx context.Context) Snapshot {
	snap := m.sample(func(b BatteryStatus) {
		m.log.Warn("read status failed", "battery", b.ID, "err", b.Err)
		m.send(ctx, SummaryStatusFailed, b.Err.Error(), 0)
	})

	if snap.LevelErr != nil {
		m.log.Warn("read level failed", "err", snap.LevelErr)
		m.send(ctx, SummaryLevelFailed, snap.LevelErr.Error(), 0)
		return snap
	}

	m.batteryLog.Info("sample",
		"percent", snap.Combined.Percent,
		"any_charging", snap.Combined.AnyCharging,
		"threshold", m.settings.Threshold,
		"alert", snap.Alert)

	if snap.Alert {
		m.send(ctx, SummaryCritical, fmt.Sprintf("%d%%", snap.Combined.Percent), m.settings.Timeout)
	}
	return snap
}

// send delivers one notification. Delivery errors are logged and dropped.
func (m *Monitor) send(ctx context.Context, summary, body string, timeout time.Duration) {
	err := m.notifier.Notify(ctx, notify.Notification{
		Summary: summary,
		Body:    body,
		Icon:    m.settings.Icon,
		Timeout: timeout,
	})
	if err != nil {
		m.log.Error("notify failed", "summary", summary, "err", err)
		return
	}
	m.notifyLog.Debug("notified", "summary", summary, "body", body)
}

// Run polls until ctx is cancelled, waiting Interval between cycles. A
// receive on wake cuts the wait short; pass nil to disable it. Run returns
// nil once ctx is done.
func (m *Monitor) Run(ctx context.Context, wake <-chan struct{}) error {
	for ctx.Err() == nil {
		m.Poll(ctx)

		timer := time.NewTimer(m.settings.Interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		case <-wake:
			m.log.Info("resume signal received, polling early")
		}
		timer.Stop()
	}
	return nil
}
