// SPDX-License-Identifier: GPL-3.0-only

package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/config"
)

var (
	// ErrNoSample is returned when a dark point is captured before the
	// sensor produced a filtered sample.
	ErrNoSample = errors.New("no filtered sample yet")

	// ErrInvalidAnchors is returned when two calibration anchors cannot be
	// fitted.
	ErrInvalidAnchors = errors.New("calibration anchors cannot be fitted")
)

// SetUserPercent stores the manual brightness intent.
func (c *Controller) SetUserPercent(ctx context.Context, percent float64) error {
	return c.do(ctx, "SetUserPercent", func(now time.Time) error {
		c.settings.SetUserPercent(percent)
		c.commit(now)
		log.Debug().Float64("percent", c.settings.UserPercent).Msg("User percent set")
		return nil
	})
}

// StepUserPercent moves the manual intent by delta and returns the result.
func (c *Controller) StepUserPercent(ctx context.Context, delta float64) (float64, error) {
	var result float64
	err := c.do(ctx, "StepUserPercent", func(now time.Time) error {
		c.settings.SetUserPercent(c.settings.UserPercent + delta)
		c.commit(now)
		result = c.settings.UserPercent
		return nil
	})
	return result, err
}

// SetEnabled engages or releases the gain path by hand. With auto-control
// on, this forces the state machine and opens its grace window.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, "SetEnabled", func(now time.Time) error {
		c.settings.Enabled = enabled
		if c.settings.AutoEnabled {
			c.auto.Override(enabled, now)
		}
		c.commit(now)
		log.Info().Bool("enabled", enabled).Msg("Extended brightness toggled")
		return nil
	})
}

// SetAutoEnabled turns auto-control on or off. Turning it on starts from a
// fresh filter and a disengaged state machine.
func (c *Controller) SetAutoEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, "SetAutoEnabled", func(now time.Time) error {
		if c.settings.AutoEnabled == enabled {
			return nil
		}
		c.settings.AutoEnabled = enabled
		if enabled {
			c.sampler.Reset()
			c.auto = auto.NewController(c.settings.AutoProfile(), c.settings.SampleHz)
		}
		c.commit(now)
		log.Info().Bool("auto", enabled).Msg("Auto-control toggled")
		return nil
	})
}

// SetProfile selects the named auto profile. Switching restarts the
// illuminance filter along with the dwell counters.
func (c *Controller) SetProfile(ctx context.Context, name string) error {
	return c.do(ctx, "SetProfile", func(now time.Time) error {
		if err := c.settings.SetProfile(name); err != nil {
			return err
		}
		c.auto.SetProfile(c.settings.AutoProfile())
		c.sampler.Reset()
		c.commit(now)
		log.Info().Str("profile", name).Msg("Auto profile changed")
		return nil
	})
}

// SetGuard enables or disables the cap guard.
func (c *Controller) SetGuard(ctx context.Context, enabled bool, factor float64) error {
	return c.do(ctx, "SetGuard", func(now time.Time) error {
		c.settings.SetGuard(enabled, factor)
		c.refreshCap(now)
		c.commit(now)
		return nil
	})
}

// SetDuck replaces the HDR duck tuning.
func (c *Controller) SetDuck(ctx context.Context, enabled bool, percent float64, duration time.Duration) error {
	return c.do(ctx, "SetDuck", func(now time.Time) error {
		c.settings.SetDuck(enabled, percent, duration)
		c.gain.SetDuckConfig(c.settings.DuckConfig(), now)
		c.commit(now)
		return nil
	})
}

// SetSampleRate changes the sampling rate.
func (c *Controller) SetSampleRate(ctx context.Context, hz float64) error {
	return c.do(ctx, "SetSampleRate", func(now time.Time) error {
		c.settings.SetSampleHz(hz)
		c.auto.SetSampleRate(c.settings.SampleHz)
		c.commit(now)
		return nil
	})
}

// CaptureDarkPoint stores the current smoothed count as the dark offset.
func (c *Controller) CaptureDarkPoint(ctx context.Context) (float64, error) {
	var x float64
	err := c.do(ctx, "CaptureDarkPoint", func(now time.Time) error {
		captured, ok := c.sampler.CaptureDark()
		if !ok {
			return ErrNoSample
		}
		x = captured
		c.storeCalibration(c.sampler.Calibrator())
		c.commit(now)
		log.Info().Float64("xDark", x).Msg("Dark point captured")
		return nil
	})
	return x, err
}

// FitCalibration fits the calibration curve through two anchors.
func (c *Controller) FitCalibration(ctx context.Context, a, b als.Anchor) error {
	return c.do(ctx, "FitCalibration", func(now time.Time) error {
		if !c.sampler.FitCalibration(a, b) {
			return fmt.Errorf("%w: (%g, %g) and (%g, %g)", ErrInvalidAnchors, a.DX, a.Lux, b.DX, b.Lux)
		}
		cal := c.sampler.Calibrator()
		c.storeCalibration(cal)
		c.commit(now)
		log.Info().Float64("a", cal.A).Float64("p", cal.P).Msg("Calibration fitted")
		return nil
	})
}

// ResetCalibration restores the factory calibration.
func (c *Controller) ResetCalibration(ctx context.Context) error {
	return c.do(ctx, "ResetCalibration", func(now time.Time) error {
		cal := als.DefaultCalibrator()
		c.sampler.SetCalibrator(cal)
		c.storeCalibration(cal)
		c.commit(now)
		return nil
	})
}

// ApplySettings installs settings reloaded from disk. They are not saved
// back.
func (c *Controller) ApplySettings(ctx context.Context, s config.Settings) error {
	s.Clamp()
	return c.do(ctx, "ApplySettings", func(now time.Time) error {
		old := c.settings
		c.settings = s

		if s.Calibration != old.Calibration {
			c.sampler.SetCalibrator(s.Calibrator())
		}
		c.sampler.SetBlend(s.BlendConfig())
		if s.Profile != old.Profile {
			c.auto.SetProfile(s.AutoProfile())
			c.sampler.Reset()
		}
		if s.SampleHz != old.SampleHz {
			c.auto.SetSampleRate(s.SampleHz)
		}
		if s.AutoEnabled && !old.AutoEnabled {
			c.sampler.Reset()
			c.auto = auto.NewController(s.AutoProfile(), s.SampleHz)
		}
		c.gain.SetDuckConfig(s.DuckConfig(), now)
		c.refreshCap(now)
		c.applyIntent()
		c.gain.Apply()
		c.publish(now)
		log.Info().Msg("Settings applied")
		return nil
	})
}

// NotifyTopologyChanged re-reads the displays and rewrites every gain.
func (c *Controller) NotifyTopologyChanged() {
	c.post("TopologyChanged", c.onTopologyChanged)
}

// NotifyWake handles resume from sleep. Caps often differ after wake.
func (c *Controller) NotifyWake() {
	c.post("Wake", func(now time.Time) {
		log.Info().Msg("Resumed from sleep")
		c.onTopologyChanged(now)
	})
}

// NotifySpaceChanged rewrites every gain.
func (c *Controller) NotifySpaceChanged() {
	c.post("SpaceChanged", func(now time.Time) {
		c.gain.Invalidate()
		c.gain.Apply()
		c.publish(now)
	})
}

// NotifySensorChanged rebinds the ambient light sensor.
func (c *Controller) NotifySensorChanged() {
	c.post("SensorChanged", func(now time.Time) {
		if c.sampler.ForceRebind(now) {
			log.Info().Msg("Ambient light sensor rebound after device change")
		}
		c.publish(now)
	})
}

func (c *Controller) onTopologyChanged(now time.Time) {
	c.gain.Invalidate()
	c.disengagedPolls = 0
	wasNotSupported := c.notSupported

	c.refreshCap(now)
	if wasNotSupported && c.capDetails.SawEDR {
		c.notSupported = false
		log.Info().Msg("Extended range display found")
		if c.overlay != nil {
			c.overlay.DisplayNotSupported(false)
		}
	}

	c.applyIntent()
	c.gain.Apply()
	c.publish(now)
}

func (c *Controller) storeCalibration(cal als.Calibrator) {
	c.settings.SetCalibration(config.CalibrationSettings{A: cal.A, P: cal.P, XDark: cal.XDark})
}

// commit applies the current intent, queues a save and publishes.
func (c *Controller) commit(now time.Time) {
	c.applyIntent()
	c.gain.Apply()
	c.persist()
	c.publish(now)
}
