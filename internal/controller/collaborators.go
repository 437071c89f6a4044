// SPDX-License-Identifier: GPL-3.0-only

package controller

import (
	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/shini4i/edr-brightness-daemon/internal/gain"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mocks

// Capabilities reports the displays' extended range headroom.
type Capabilities interface {
	// Headroom returns one reading per display. Built-in displays are
	// marked as targets.
	Headroom() []gain.Headroom

	// AnyEDR reports whether any connected display supports extended range.
	AnyEDR() bool
}

// HDRDetector reports whether HDR content is likely on screen.
type HDRDetector interface {
	HDRContentLikely() bool
}

// Applier writes a gain to one display.
type Applier interface {
	ApplyGain(displayID string, gain float64) error
}

// Overlay drives the compositor side of the extended range path.
type Overlay interface {
	// BeginRecovery forces the full-size overlay and an elevated refresh.
	BeginRecovery()
	// EndRecovery reverts BeginRecovery.
	EndRecovery()
	// DisplayNotSupported reports the confirmed capability state.
	DisplayNotSupported(notSupported bool)
}

// Persister saves settings.
type Persister interface {
	Save(settings config.Settings) error
}
