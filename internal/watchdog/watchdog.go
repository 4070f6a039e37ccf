// Package watchdog wraps the systemd notification protocol. Every call
// is best-effort; without a supervisor present they all no-op.
package watchdog

import (
	"log"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready announces that startup finished.
func Ready() {
	notify(daemon.SdNotifyReady)
}

// Ping emits one keepalive.
func Ping() {
	notify(daemon.SdNotifyWatchdog)
}

// Stopping announces shutdown before cleanup starts.
func Stopping() {
	notify(daemon.SdNotifyStopping)
}

func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("watchdog: notify %q: %v", state, err)
	}
}

// PingInterval returns half the supervisor's watchdog window, or zero
// when no watchdog is armed.
func PingInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Printf("watchdog: %v", err)
		return 0
	}
	if d == 0 {
		return 0
	}
	return d / 2
}
