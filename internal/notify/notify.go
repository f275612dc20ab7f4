// Package notify delivers desktop notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	godbus "github.com/godbus/dbus/v5"
)

const (
	busName    = "org.freedesktop.Notifications"
	objPath    = "/org/freedesktop/Notifications"
	notifyCall = busName + ".Notify"
)

// Notification is a single desktop notification.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	// Timeout is how long the notification stays visible; 0 keeps it until
	// the user dismisses it.
	Timeout time.Duration
}

// Notifier displays notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DBusNotifier sends notifications to the freedesktop notification server on
// the session bus.
type DBusNotifier struct {
	appName string
	bus     func() (*godbus.Conn, error)
}

// NewDBusNotifier creates a notifier. The session bus is resolved on every
// call, so a notification server that starts after the daemon is picked up.
func NewDBusNotifier(appName string) *DBusNotifier {
	return &DBusNotifier{appName: appName, bus: godbus.SessionBus}
}

// Notify sends n and discards the server-assigned id.
func (d *DBusNotifier) Notify(ctx context.Context, n Notification) error {
	conn, err := d.bus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}

	var id uint32
	err = conn.Object(busName, objPath).CallWithContext(ctx, notifyCall, 0,
		d.appName,
		uint32(0),
		n.Icon,
		n.Summary,
		n.Body,
		[]string{},
		map[string]godbus.Variant{},
		expireTimeout(n.Timeout),
	).Store(&id)
	if err != nil {
		return fmt.Errorf("send notification %q: %w", n.Summary, err)
	}
	return nil
}

// expireTimeout converts a timeout into the expire_timeout argument of
// Notify, in milliseconds. Zero means never expire.
func expireTimeout(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	if ms == 0 {
		return 1
	}
	return int32(ms)
}

// LogNotifier writes notifications to a logger instead of displaying them.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Log.Info("notification",
		"summary", n.Summary,
		"body", n.Body,
		"icon", n.Icon,
		"timeout", n.Timeout)
	return nil
}
