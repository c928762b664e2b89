// Package systemd reports service state to systemd when running as a
// Type=notify unit. Every call is a no-op outside systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notify is replaced in tests.
var notify = daemon.SdNotify

// Ready tells systemd that startup finished.
func Ready() (bool, error) { return notify(false, daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown began.
func Stopping() (bool, error) { return notify(false, daemon.SdNotifyStopping) }

// Reloading brackets a configuration reload; call the returned func when done.
func Reloading() func() {
	_, _ = notify(false, daemon.SdNotifyReloading)
	return func() { _, _ = notify(false, daemon.SdNotifyReady) }
}

// Status sets the free-form status line shown by systemctl status.
func Status(s string) { _, _ = notify(false, "STATUS="+s) }

// WatchdogInterval returns how often to ping, or 0 when the watchdog is off.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// Watchdog pings systemd every interval while healthy reports true.
// It returns when ctx is done.
func Watchdog(ctx context.Context, interval time.Duration, healthy func() bool) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy == nil || healthy() {
				_, _ = notify(false, daemon.SdNotifyWatchdog)
			}
		}
	}
}
