package monitor

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cptspacemanspiff/power-notify/internal/aggregate"
	"github.com/cptspacemanspiff/power-notify/internal/collector"
	"github.com/cptspacemanspiff/power-notify/internal/notify"
)

type recordingNotifier struct {
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) summaries() []string {
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Summary)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// testBattery describes one fake power_supply directory; empty fields are not written.
type testBattery struct {
	id, status, full, now string
}

func newSysfs(t *testing.T, bats ...testBattery) *collector.Reader {
	t.Helper()

	root := t.TempDir()
	for _, b := range bats {
		dir := filepath.Join(root, "class/power_supply", b.id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		for attr, v := range map[string]string{"status": b.status, "energy_full": b.full, "energy_now": b.now} {
			if v != "" {
				writeTestFile(t, filepath.Join(dir, attr), v+"\n")
			}
		}
	}
	return collector.NewReader(root, nil)
}

func newTestMonitor(reader BatteryReader, n notify.Notifier, threshold int, ids ...string) *Monitor {
	return New(Settings{
		Batteries: ids,
		Threshold: threshold,
		Timeout:   10 * time.Second,
		Interval:  time.Hour,
		Icon:      "battery",
	}, reader, n, discardLogger())
}

func TestPoll_CriticalTwoBatteries(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", status: "Discharging", full: "5000", now: "1000"},
		testBattery{id: "BAT1", status: "Discharging", full: "5000", now: "900"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	snap := m.Poll(context.Background())

	if snap.LevelErr != nil {
		t.Fatalf("LevelErr = %v", snap.LevelErr)
	}
	if snap.Combined.Percent != 19 {
		t.Fatalf("Percent = %d, want 19", snap.Combined.Percent)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications (%q), want 1", len(n.sent), n.summaries())
	}
	want := notify.Notification{Summary: SummaryCritical, Body: "19%", Icon: "battery", Timeout: 10 * time.Second}
	if n.sent[0] != want {
		t.Fatalf("notification = %+v, want %+v", n.sent[0], want)
	}
}

func TestPoll_ChargingSuppressesAlert(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", status: "Discharging", full: "5000", now: "100"},
		testBattery{id: "BAT1", status: "Charging", full: "5000", now: "100"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	snap := m.Poll(context.Background())

	if !snap.Combined.AnyCharging {
		t.Fatal("AnyCharging = false, want true")
	}
	if snap.Alert || len(n.sent) != 0 {
		t.Fatalf("Alert = %v, sent = %q, want no notification", snap.Alert, n.summaries())
	}
}

func TestPoll_AtThresholdDoesNotAlert(t *testing.T) {
	reader := newSysfs(t, testBattery{id: "BAT1", status: "Discharging", full: "1000", now: "200"})
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT1")

	snap := m.Poll(context.Background())

	if snap.Combined.Percent != 20 || snap.Alert {
		t.Fatalf("snapshot = %+v, want percent 20 and no alert", snap)
	}
	if len(n.sent) != 0 {
		t.Fatalf("sent = %q, want none", n.summaries())
	}
}

func TestPoll_UnknownStatusCountsAsNotCharging(t *testing.T) {
	reader := newSysfs(t, testBattery{id: "BAT1", status: "Full", full: "1000", now: "50"})
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT1")

	m.Poll(context.Background())

	if got := n.summaries(); len(got) != 1 || got[0] != SummaryCritical {
		t.Fatalf("sent = %q, want one critical notification", got)
	}
}

func TestPoll_MissingStatusFile(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", full: "5000", now: "100"},
		testBattery{id: "BAT1", status: "Charging", full: "5000", now: "100"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	snap := m.Poll(context.Background())

	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications (%q), want 1", len(n.sent), n.summaries())
	}
	got := n.sent[0]
	if got.Summary != SummaryStatusFailed || got.Timeout != 0 {
		t.Fatalf("notification = %+v, want %q with timeout 0", got, SummaryStatusFailed)
	}
	if !errors.Is(snap.Batteries[0].Err, fs.ErrNotExist) {
		t.Fatalf("Batteries[0].Err = %v, want not-exist", snap.Batteries[0].Err)
	}
	if got.Body != snap.Batteries[0].Err.Error() {
		t.Fatalf("Body = %q, want error text %q", got.Body, snap.Batteries[0].Err.Error())
	}
	// BAT1 still participates: its Charging status suppresses the alert.
	if !snap.Combined.AnyCharging || snap.Alert {
		t.Fatalf("Combined = %+v, Alert = %v, want charging and no alert", snap.Combined, snap.Alert)
	}
	if statuses := snap.Statuses(); len(statuses) != 1 || statuses[0] != collector.Charging {
		t.Fatalf("Statuses() = %v, want [Charging]", statuses)
	}
}

func TestPoll_MissingStatusStillAlertsFromOthers(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", full: "5000", now: "100"},
		testBattery{id: "BAT1", status: "Discharging", full: "5000", now: "100"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	m.Poll(context.Background())

	got := n.summaries()
	if len(got) != 2 || got[0] != SummaryStatusFailed || got[1] != SummaryCritical {
		t.Fatalf("sent = %q, want [%q %q]", got, SummaryStatusFailed, SummaryCritical)
	}
}

func TestPoll_ZeroCapacity(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", status: "Discharging", full: "0", now: "0"},
		testBattery{id: "BAT1", status: "Discharging", full: "0", now: "0"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	snap := m.Poll(context.Background())

	if !errors.Is(snap.LevelErr, aggregate.ErrZeroCapacity) {
		t.Fatalf("LevelErr = %v, want %v", snap.LevelErr, aggregate.ErrZeroCapacity)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications (%q), want 1", len(n.sent), n.summaries())
	}
	want := notify.Notification{Summary: SummaryLevelFailed, Body: "total full energy is zero", Icon: "battery"}
	if n.sent[0] != want {
		t.Fatalf("notification = %+v, want %+v", n.sent[0], want)
	}
	if snap.Alert {
		t.Fatal("Alert = true, want false when level is unreadable")
	}
}

func TestPoll_EnergyParseError(t *testing.T) {
	reader := newSysfs(t,
		testBattery{id: "BAT0", status: "Discharging", full: "5000", now: "garbage"},
		testBattery{id: "BAT1", status: "Discharging", full: "5000", now: "100"},
	)
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT0", "BAT1")

	snap := m.Poll(context.Background())

	var readErr *collector.ReadError
	if !errors.As(snap.LevelErr, &readErr) || readErr.Kind != collector.KindParse || readErr.Battery != "BAT0" {
		t.Fatalf("LevelErr = %v, want parse error for BAT0", snap.LevelErr)
	}
	if got := n.summaries(); len(got) != 1 || got[0] != SummaryLevelFailed {
		t.Fatalf("sent = %q, want one %q", got, SummaryLevelFailed)
	}
}

func TestPoll_NotifierErrorIsSwallowed(t *testing.T) {
	reader := newSysfs(t, testBattery{id: "BAT1", status: "Discharging", full: "1000", now: "10"})
	n := &recordingNotifier{err: errors.New("no notification daemon")}
	m := newTestMonitor(reader, n, 20, "BAT1")

	snap := m.Poll(context.Background())

	if !snap.Alert || len(n.sent) != 1 {
		t.Fatalf("Alert = %v, sent = %d, want one attempted critical notification", snap.Alert, len(n.sent))
	}
}

func TestSample_DoesNotNotify(t *testing.T) {
	reader := newSysfs(t, testBattery{id: "BAT1", status: "Discharging", full: "1000", now: "10"})
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT9", "BAT1")

	snap := m.Sample()

	if len(n.sent) != 0 {
		t.Fatalf("Sample() sent %q, want nothing", n.summaries())
	}
	if snap.Batteries[0].Err == nil {
		t.Fatal("Batteries[0].Err = nil, want read error for BAT9")
	}
	if snap.LevelErr == nil {
		t.Fatal("LevelErr = nil, want read error for BAT9 energy")
	}
}

func TestNew_CopiesBatteries(t *testing.T) {
	ids := []string{"BAT0"}
	m := New(Settings{Batteries: ids}, nil, nil, discardLogger())
	ids[0] = "BAT9"

	if m.settings.Batteries[0] != "BAT0" {
		t.Fatalf("Batteries = %q, want copy unaffected by caller", m.settings.Batteries)
	}
}

// countingReader reports each completed status pass on polled.
type countingReader struct {
	BatteryReader
	polled chan struct{}
}

func (c *countingReader) ReadStatus(id string) (collector.Status, error) {
	s, err := c.BatteryReader.ReadStatus(id)
	c.polled <- struct{}{}
	return s, err
}

func waitPolled(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for poll")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	reader := &countingReader{
		BatteryReader: newSysfs(t, testBattery{id: "BAT1", status: "Charging", full: "1000", now: "900"}),
		polled:        make(chan struct{}, 16),
	}
	m := newTestMonitor(reader, &recordingNotifier{}, 20, "BAT1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, nil) }()

	waitPolled(t, reader.polled)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_WakePollsEarly(t *testing.T) {
	reader := &countingReader{
		BatteryReader: newSysfs(t, testBattery{id: "BAT1", status: "Discharging", full: "1000", now: "100"}),
		polled:        make(chan struct{}, 16),
	}
	n := &recordingNotifier{}
	m := newTestMonitor(reader, n, 20, "BAT1")

	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, wake) }()

	waitPolled(t, reader.polled)
	wake <- struct{}{}
	waitPolled(t, reader.polled)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(n.sent) < 2 {
		t.Fatalf("sent %d notifications, want at least 2 (one per cycle)", len(n.sent))
	}
}

func TestRun_ReturnsImmediatelyWhenCancelled(t *testing.T) {
	reader := &countingReader{BatteryReader: newSysfs(t), polled: make(chan struct{}, 1)}
	m := newTestMonitor(reader, &recordingNotifier{}, 20, "BAT1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	select {
	case <-reader.polled:
		t.Fatal("Run() polled with a cancelled context")
	default:
	}
}

// orderLog records reads and notifications in the order they happen.
type orderLog struct {
	BatteryReader
	events []string
}

func (o *orderLog) ReadStatus(id string) (collector.Status, error) {
	o.events = append(o.events, "status "+id)
	return o.BatteryReader.ReadStatus(id)
}

func (o *orderLog) ReadReading(id string) (collector.EnergyReading, error) {
	o.events = append(o.events, "energy "+id)
	return o.BatteryReader.ReadReading(id)
}

func (o *orderLog) Notify(_ context.Context, n notify.Notification) error {
	o.events = append(o.events, "notify "+n.Summary)
	return nil
}

func TestPoll_StatusFailureNotifiedBeforeNextRead(t *testing.T) {
	log := &orderLog{BatteryReader: newSysfs(t,
		testBattery{id: "BAT0", full: "5000", now: "4000"},
		testBattery{id: "BAT1", status: "Discharging", full: "5000", now: "4000"},
	)}
	m := newTestMonitor(log, log, 20, "BAT0", "BAT1")

	m.Poll(context.Background())

	want := []string{
		"status BAT0",
		"notify " + SummaryStatusFailed,
		"status BAT1",
		"energy BAT0",
		"energy BAT1",
	}
	if len(log.events) != len(want) {
		t.Fatalf("events = %q, want %q", log.events, want)
	}
	for i := range want {
		if log.events[i] != want[i] {
			t.Fatalf("events = %q, want %q", log.events, want)
		}
	}
}
