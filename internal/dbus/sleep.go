package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	logindInterface = "org.freedesktop.login1.Manager"
	prepareForSleep = "PrepareForSleep"
)

// SleepWatcher listens for logind's PrepareForSleep signal on the system bus
// and reports resumes.
type SleepWatcher struct {
	onWake func()
}

// NewSleepWatcher creates a watcher calling onWake after every resume.
func NewSleepWatcher(onWake func()) *SleepWatcher {
	return &SleepWatcher{onWake: onWake}
}

// Run blocks until ctx is done or the bus connection drops.
func (w *SleepWatcher) Run(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close system bus connection")
		}
	}()

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForSleep),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", prepareForSleep, err)
	}

	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	log.Info().Msg("Watching for resume from sleep")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("system bus connection closed")
			}
			w.handle(sig)
		}
	}
}

// handle calls onWake for PrepareForSleep(false), which logind sends after
// resume.
func (w *SleepWatcher) handle(sig *dbus.Signal) {
	if sig == nil || sig.Name != logindInterface+"."+prepareForSleep || len(sig.Body) == 0 {
		return
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		return
	}
	if sleeping {
		log.Debug().Msg("System going to sleep")
		return
	}
	w.onWake()
}
