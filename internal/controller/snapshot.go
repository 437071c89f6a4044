package controller

import (
	"time"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/shini4i/edr-brightness-daemon/internal/gain"
)

// Snapshot is a copy of the controller state taken after a tick. Readers on
// other goroutines only ever see snapshots.
type Snapshot struct {
	At       time.Time
	Settings config.Settings

	// UserPercent is the intent in effect: the auto ramp while auto-control
	// is on, the stored percent otherwise.
	UserPercent   float64
	Factor        float64
	EffectiveGain float64
	Active        bool

	Cap    gain.CapDetails
	Gain   gain.State
	Auto   auto.Status
	Sensor als.Diagnostics

	NotSupported bool
	Recovering   bool
	Recoveries   uint64
	Panics       uint64
}

// Observer receives a snapshot after every tick. It is called on the
// controller's goroutine and must not block.
type Observer interface {
	Observe(snapshot Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

// Observe calls f.
func (f ObserverFunc) Observe(s Snapshot) { f(s) }

func (c *Controller) publish(now time.Time) {
	gs := c.gain.State()
	snap := &Snapshot{
		At:            now,
		Settings:      c.settings,
		UserPercent:   gs.UserPercent,
		Factor:        gs.Factor,
		EffectiveGain: gs.Effective,
		Active:        gs.Active,
		Cap:           c.capDetails,
		Gain:          gs,
		Auto:          c.auto.Status(),
		Sensor:        c.sampler.Diagnostics(),
		NotSupported:  c.notSupported,
		Recovering:    !c.recoveryUntil.IsZero(),
		Recoveries:    c.recoveries,
		Panics:        c.panics,
	}
	c.snapshot.Store(snap)

	for _, o := range c.observers {
		o.Observe(*snap)
	}
}

// Snapshot returns the most recent snapshot.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// CurrentUserPercent returns the intent in effect.
func (c *Controller) CurrentUserPercent() float64 {
	return c.snapshot.Load().UserPercent
}

// CurrentFactor returns the gain for the intent in effect, before ducking.
func (c *Controller) CurrentFactor() float64 {
	return c.snapshot.Load().Factor
}

// CurrentCapDetails returns the last cap computation.
func (c *Controller) CurrentCapDetails() gain.CapDetails {
	return c.snapshot.Load().Cap
}

// Settings returns the settings in effect.
func (c *Controller) Settings() config.Settings {
	return c.snapshot.Load().Settings
}
