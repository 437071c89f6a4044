// Package udev watches netlink uevents for display hotplug and sensor
// connect/disconnect.
package udev

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog/log"
)

const (
	// netlinkBufferSize is the receive buffer size for the netlink socket.
	// A larger buffer prevents ENOBUFS errors during USB hot-plug events.
	netlinkBufferSize = 2 * 1024 * 1024 // 2 MB

	// removeDebounceWindow suppresses repeated remove events for one device.
	removeDebounceWindow = time.Second

	// removeHistoryTTL bounds how long remove timestamps are kept.
	removeHistoryTTL = time.Minute
)

// EventType represents the type of device event.
type EventType int

const (
	// EventAdd indicates a device was connected.
	EventAdd EventType = iota
	// EventRemove indicates a device was disconnected.
	EventRemove
	// EventChange indicates a connector changed state.
	EventChange
)

// Source identifies which kind of device an event concerns.
type Source int

const (
	// SourceDisplay is a DRM connector hotplug.
	SourceDisplay Source = iota
	// SourceSensor is a HID raw device, possibly the light sensor.
	SourceSensor
)

// Event represents a device hot-plug event.
type Event struct {
	Type   EventType
	Source Source
}

// EventHandler is called when a device event occurs.
type EventHandler func(event Event)

// RecoveryHandler is called when the monitor recovers from an error condition
// (e.g., netlink buffer overflow) and needs to trigger a refresh.
type RecoveryHandler func()

// Monitor watches for display hotplug and sensor connect/disconnect events.
type Monitor struct {
	conn            *netlink.UEventConn
	handler         EventHandler
	recoveryHandler RecoveryHandler
	quit            chan struct{}
	stopped         bool
	lastRemoveTime  map[string]time.Time
	now             func() time.Time
	mu              sync.Mutex
}

// NewMonitor creates a new udev monitor with the given event handler.
func NewMonitor(handler EventHandler) *Monitor {
	return &Monitor{
		handler:        handler,
		lastRemoveTime: make(map[string]time.Time),
		now:            time.Now,
	}
}

// SetRecoveryHandler sets the handler called when the monitor recovers from errors.
// It should re-read displays and rebind the sensor, since events may have been lost.
func (m *Monitor) SetRecoveryHandler(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryHandler = handler
}

// Start begins monitoring for device events.
// This method is non-blocking; events are processed in a background goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("monitor already started")
	}

	m.conn = &netlink.UEventConn{}
	if err := m.conn.Connect(netlink.UdevEvent); err != nil {
		m.conn = nil
		return fmt.Errorf("failed to connect to netlink: %w", err)
	}

	if err := setSocketBufferSize(m.conn.Fd, netlinkBufferSize); err != nil {
		log.Warn().Err(err).Int("size", netlinkBufferSize).Msg("Failed to set netlink buffer size")
	} else {
		log.Debug().Int("size", netlinkBufferSize).Msg("Netlink socket buffer size configured")
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.quit = m.conn.Monitor(queue, errs, createMatcher())
	m.stopped = false

	go m.processEvents(queue, errs)

	log.Info().Msg("udev monitor started")
	return nil
}

// Stop stops the monitor and releases resources.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.stopped {
		return nil
	}

	m.stopped = true

	select {
	case m.quit <- struct{}{}:
	default:
	}

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close netlink connection: %w", err)
	}

	m.conn = nil
	log.Info().Msg("udev monitor stopped")
	return nil
}

// createMatcher matches DRM connector hotplugs and hidraw add/remove.
func createMatcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}

	changeAction := "change"
	addAction := "add"
	removeAction := "remove"

	// The kernel sends "change" with HOTPLUG=1 on the card device when a
	// connector is plugged, unplugged or its EDID changes.
	rules.AddRule(netlink.RuleDefinition{
		Action: &changeAction,
		Env: map[string]string{
			"SUBSYSTEM": "^drm$",
			"HOTPLUG":   "^1$",
		},
	})

	for _, action := range []*string{&addAction, &removeAction} {
		rules.AddRule(netlink.RuleDefinition{
			Action: action,
			Env: map[string]string{
				"SUBSYSTEM": "^hidraw$",
			},
		})
	}

	return rules
}

// processEvents handles incoming udev events.
func (m *Monitor) processEvents(queue chan netlink.UEvent, errs chan error) {
	for {
		select {
		case event, ok := <-queue:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.mu.Lock()
			stopped := m.stopped
			recoveryHandler := m.recoveryHandler
			m.mu.Unlock()
			if stopped {
				return
			}

			// Events may have been dropped on overflow, so trigger a refresh.
			if isBufferOverflowError(err) {
				log.Warn().Msg("Netlink buffer overflow detected, triggering recovery refresh")
				if recoveryHandler != nil {
					go recoveryHandler()
				}
				continue
			}

			log.Error().Err(err).Msg("udev monitor error")
		}
	}
}

// setSocketBufferSize sets the receive buffer size for a socket.
// It first tries SO_RCVBUFFORCE (requires CAP_NET_ADMIN), then falls back to SO_RCVBUF.
func setSocketBufferSize(fd int, size int) error {
	err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUFFORCE, size)
	if err == nil {
		return nil
	}
	// limited by net.core.rmem_max
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

// isBufferOverflowError checks if the error is a netlink buffer overflow (ENOBUFS).
func isBufferOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return true
	}
	// the udev library does not always wrap the errno
	return strings.Contains(strings.ToLower(err.Error()), "no buffer space available")
}

// shouldDebounceRemove reports whether a remove for key arrived within the
// debounce window of the previous one, and records this one.
func (m *Monitor) shouldDebounceRemove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, at := range m.lastRemoveTime {
		if now.Sub(at) > removeHistoryTTL {
			delete(m.lastRemoveTime, k)
		}
	}

	last, seen := m.lastRemoveTime[key]
	m.lastRemoveTime[key] = now
	return seen && now.Sub(last) < removeDebounceWindow
}

// handleEvent processes a single udev event.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	var event Event
	switch uevent.Env["SUBSYSTEM"] {
	case "drm":
		if uevent.Action != netlink.CHANGE || uevent.Env["HOTPLUG"] != "1" {
			return
		}
		event = Event{Type: EventChange, Source: SourceDisplay}
		log.Info().Str("devpath", uevent.KObj).Msg("Display hotplug")

	case "hidraw":
		switch uevent.Action {
		case netlink.ADD:
			event = Event{Type: EventAdd, Source: SourceSensor}
		case netlink.REMOVE:
			if m.shouldDebounceRemove(deviceKey(uevent)) {
				log.Debug().Str("devpath", uevent.KObj).Msg("Duplicate remove event ignored")
				return
			}
			event = Event{Type: EventRemove, Source: SourceSensor}
		default:
			return
		}
		log.Debug().
			Str("action", string(uevent.Action)).
			Str("devname", uevent.Env["DEVNAME"]).
			Msg("HID raw device event")

	default:
		return
	}

	if m.handler != nil {
		m.handler(event)
	}
}

// deviceKey identifies the device node an event concerns.
func deviceKey(uevent netlink.UEvent) string {
	if name := uevent.Env["DEVNAME"]; name != "" {
		return name
	}
	return uevent.KObj
}
