// Package logind watches systemd-logind for the system resuming from sleep.
package logind

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	managerIface  = "org.freedesktop.login1.Manager"
	prepareMember = "PrepareForSleep"
)

// ResumeMonitor signals on Resumed each time logind reports that the system
// woke up. Signals are coalesced: a slow consumer sees at most one pending wake.
type ResumeMonitor struct {
	conn *dbus.Conn
	done chan struct{}
	wake chan struct{}
	log  *slog.Logger
}

// NewResumeMonitor subscribes to PrepareForSleep on the system bus.
func NewResumeMonitor(logger *slog.Logger) (*ResumeMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(managerIface),
		dbus.WithMatchMember(prepareMember),
	)
	if err != nil {
		return nil, err
	}

	m := &ResumeMonitor{
		conn: conn,
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
		log:  logger,
	}
	go m.listen()
	return m, nil
}

// Resumed returns the wake channel.
func (m *ResumeMonitor) Resumed() <-chan struct{} {
	return m.wake
}

// Close stops the monitor.
func (m *ResumeMonitor) Close() {
	close(m.done)
}

func (m *ResumeMonitor) listen() {
	ch := make(chan *dbus.Signal, 16)
	m.conn.Signal(ch)
	defer m.conn.RemoveSignal(ch)

	m.consume(ch)
}

// consume handles signals until Close is called or ch is closed, which
// godbus does when the bus connection drops.
func (m *ResumeMonitor) consume(ch <-chan *dbus.Signal) {
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				m.log.Warn("logind signal channel closed, resume polling disabled")
				return
			}
			m.handle(sig)
		case <-m.done:
			return
		}
	}
}

func (m *ResumeMonitor) handle(sig *dbus.Signal) {
	sleeping, ok := prepareForSleep(sig)
	if !ok {
		return
	}
	if sleeping {
		m.log.Info("system going to sleep")
		return
	}
	m.log.Info("system woke up")
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// prepareForSleep decodes a PrepareForSleep signal. ok is false for any other
// signal or a malformed body.
func prepareForSleep(sig *dbus.Signal) (sleeping, ok bool) {
	if sig == nil || sig.Name != managerIface+"."+prepareMember || len(sig.Body) < 1 {
		return false, false
	}
	sleeping, ok = sig.Body[0].(bool)
	return sleeping, ok
}
