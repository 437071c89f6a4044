// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
)

// ErrNoSensor is returned by Bind when no matching sensor is connected.
var ErrNoSensor = errors.New("no ambient light sensor found")

// Manager binds the ambient light sensor. Every Bind releases the previous
// handle and opens a fresh one, so it doubles as the rebind path.
type Manager struct {
	mu         sync.Mutex
	current    *Sensor
	serial     string
	enumerator DeviceEnumerator
	opener     DeviceOpener
}

var _ als.Binder = (*Manager)(nil)

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithEnumerator sets a custom device enumerator for testing.
func WithEnumerator(fn DeviceEnumerator) ManagerOption {
	return func(m *Manager) {
		m.enumerator = fn
	}
}

// WithOpener sets a custom device opener for testing.
func WithOpener(fn DeviceOpener) ManagerOption {
	return func(m *Manager) {
		m.opener = fn
	}
}

// WithSerial restricts binding to the sensor with the given serial number.
func WithSerial(serial string) ManagerOption {
	return func(m *Manager) {
		m.serial = serial
	}
}

// NewManager creates a new sensor manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		enumerator: EnumerateSensors,
		opener:     OpenSensor,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind closes the current sensor, if any, and opens the first matching one.
func (m *Manager) Bind() (als.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()

	candidates, err := m.enumerator()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate sensors: %w", err)
	}

	for _, info := range candidates {
		if m.serial != "" && info.Serial != m.serial {
			continue
		}

		device, err := m.opener(info)
		if err != nil {
			log.Warn().Err(err).Str("path", info.Path).Msg("Failed to open ambient light sensor")
			continue
		}

		m.current = NewSensor(device)
		log.Info().
			Str("path", info.Path).
			Str("serial", info.Serial).
			Str("product", info.Product).
			Msg("Ambient light sensor bound")
		return m.current, nil
	}

	if m.serial != "" {
		return nil, fmt.Errorf("%w with serial %s", ErrNoSensor, m.serial)
	}
	return nil, ErrNoSensor
}

// Current returns the bound sensor's info and whether one is bound.
func (m *Manager) Current() (DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return DeviceInfo{}, false
	}
	return m.current.Info(), true
}

// Close releases the bound sensor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()
	return nil
}

func (m *Manager) releaseLocked() {
	if m.current == nil {
		return
	}
	if err := m.current.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close ambient light sensor")
	}
	m.current = nil
}
