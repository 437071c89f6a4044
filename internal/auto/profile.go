// SPDX-License-Identifier: GPL-3.0-only

// Package auto decides when the extended brightness path should be engaged
// from ambient illuminance, and how far to ramp it.
package auto

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownProfile is returned for a profile name with no preset.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile is a sensitivity preset for automatic control.
type Profile struct {
	Name string

	// OnLux and OffLux are the enable and disable thresholds.
	OnLux  float64
	OffLux float64
	// OnSeconds and OffSeconds are how long a threshold must hold.
	OnSeconds  float64
	OffSeconds float64

	// RampStep is the per-tick fraction of the remaining distance to the
	// desired percent that is applied.
	RampStep float64
	// FilterTau is the illuminance filter time constant.
	FilterTau time.Duration

	// EntryMinPercent is the percent applied on enable and the floor while enabled.
	EntryMinPercent float64
	// EntryEnvelope is how long the ceiling takes to rise from
	// EntryMinPercent to 100 after enabling.
	EntryEnvelope time.Duration
	// MaxPercentPerSecond limits how fast the applied percent may move.
	MaxPercentPerSecond float64

	// MinOnDwell and MinOffDwell are the minimum times spent enabled or
	// disabled before the opposite transition is allowed.
	MinOnDwell  time.Duration
	MinOffDwell time.Duration
}

const (
	// ProfileSensitive engages in bright indoor light.
	ProfileSensitive = "sensitive"
	// ProfileNormal engages near direct daylight.
	ProfileNormal = "normal"
	// ProfileConservative engages only in strong sun.
	ProfileConservative = "conservative"
)

var profiles = map[string]Profile{
	ProfileSensitive: {
		Name:                ProfileSensitive,
		OnLux:               12000,
		OffLux:              7000,
		OnSeconds:           2,
		OffSeconds:          8,
		RampStep:            0.35,
		FilterTau:           1500 * time.Millisecond,
		EntryMinPercent:     20,
		EntryEnvelope:       8 * time.Second,
		MaxPercentPerSecond: 25,
		MinOnDwell:          10 * time.Second,
		MinOffDwell:         10 * time.Second,
	},
	ProfileNormal: {
		Name:                ProfileNormal,
		OnLux:               25000,
		OffLux:              15000,
		OnSeconds:           2,
		OffSeconds:          6,
		RampStep:            0.25,
		FilterTau:           2 * time.Second,
		EntryMinPercent:     20,
		EntryEnvelope:       8 * time.Second,
		MaxPercentPerSecond: 20,
		MinOnDwell:          10 * time.Second,
		MinOffDwell:         10 * time.Second,
	},
	ProfileConservative: {
		Name:                ProfileConservative,
		OnLux:               40000,
		OffLux:              25000,
		OnSeconds:           4,
		OffSeconds:          10,
		RampStep:            0.2,
		FilterTau:           3 * time.Second,
		EntryMinPercent:     15,
		EntryEnvelope:       10 * time.Second,
		MaxPercentPerSecond: 15,
		MinOnDwell:          15 * time.Second,
		MinOffDwell:         15 * time.Second,
	},
}

// LookupProfile returns the preset with the given name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// DefaultProfile returns the normal preset.
func DefaultProfile() Profile {
	return profiles[ProfileNormal]
}

// ProfileNames returns the preset names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
