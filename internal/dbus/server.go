// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides the session-bus service the shell extension talks to.
package dbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/controller"
)

// ErrRateLimitExceeded is returned when brightness change requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidStep is returned when an invalid brightness step value is provided.
var ErrInvalidStep = errors.New("step must be between 1 and 100")

// ErrUnknownProfile is returned when SetProfile names no known profile.
var ErrUnknownProfile = errors.New("unknown auto profile")

const (
	// rateLimitPerSecond is the maximum number of brightness changes per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for brightness changes.
	rateLimitBurst = 5

	// callTimeout bounds how long a method waits for the controller.
	callTimeout = 2 * time.Second
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.shini4i.EdrBrightness"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/shini4i/EdrBrightness"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.shini4i.EdrBrightness"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="GetState">
      <arg name="state" type="a{sv}" direction="out"/>
    </method>
    <method name="SetUserPercent">
      <arg name="percent" type="d" direction="in"/>
    </method>
    <method name="IncreasePercent">
      <arg name="step" type="u" direction="in"/>
      <arg name="percent" type="d" direction="out"/>
    </method>
    <method name="DecreasePercent">
      <arg name="step" type="u" direction="in"/>
      <arg name="percent" type="d" direction="out"/>
    </method>
    <method name="SetEnabled">
      <arg name="enabled" type="b" direction="in"/>
    </method>
    <method name="SetAutoEnabled">
      <arg name="enabled" type="b" direction="in"/>
    </method>
    <method name="SetProfile">
      <arg name="profile" type="s" direction="in"/>
    </method>
    <method name="SetGuard">
      <arg name="enabled" type="b" direction="in"/>
      <arg name="factor" type="d" direction="in"/>
    </method>
    <method name="SetDuck">
      <arg name="enabled" type="b" direction="in"/>
      <arg name="percent" type="d" direction="in"/>
      <arg name="durationMs" type="u" direction="in"/>
    </method>
    <method name="SetSampleRate">
      <arg name="hz" type="d" direction="in"/>
    </method>
    <method name="CaptureDarkPoint">
      <arg name="xDark" type="d" direction="out"/>
    </method>
    <method name="FitCalibration">
      <arg name="dxA" type="d" direction="in"/>
      <arg name="luxA" type="d" direction="in"/>
      <arg name="dxB" type="d" direction="in"/>
      <arg name="luxB" type="d" direction="in"/>
    </method>
    <method name="ResetCalibration"/>
    <method name="ReportHeadroom">
      <arg name="displays" type="a(sddb)" direction="in"/>
    </method>
    <method name="ReportHDR">
      <arg name="likely" type="b" direction="in"/>
    </method>
    <method name="TopologyChanged"/>
    <method name="SpaceChanged"/>
    <signal name="GainChanged">
      <arg name="display" type="s"/>
      <arg name="gain" type="d"/>
    </signal>
    <signal name="PercentChanged">
      <arg name="percent" type="d"/>
    </signal>
    <signal name="RecoveryBurst">
      <arg name="active" type="b"/>
    </signal>
    <signal name="DisplayNotSupported">
      <arg name="notSupported" type="b"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// Control is the part of the controller the service drives.
// This allows for fakes in tests.
type Control interface {
	Snapshot() controller.Snapshot
	SetUserPercent(ctx context.Context, percent float64) error
	StepUserPercent(ctx context.Context, delta float64) (float64, error)
	SetEnabled(ctx context.Context, enabled bool) error
	SetAutoEnabled(ctx context.Context, enabled bool) error
	SetProfile(ctx context.Context, name string) error
	SetGuard(ctx context.Context, enabled bool, factor float64) error
	SetDuck(ctx context.Context, enabled bool, percent float64, duration time.Duration) error
	SetSampleRate(ctx context.Context, hz float64) error
	CaptureDarkPoint(ctx context.Context) (float64, error)
	FitCalibration(ctx context.Context, a, b als.Anchor) error
	ResetCalibration(ctx context.Context) error
	NotifyTopologyChanged()
	NotifySpaceChanged()
}

// Server implements the D-Bus service.
//
// Thread safety:
//   - Every state change is serialized by the controller.
//   - Shell guards its own readings and the connection used for signals.
type Server struct {
	control     Control
	shell       *Shell
	rateLimiter *rate.Limiter
}

// NewServer creates a new D-Bus server driving control. Reports from the
// extension are stored in shell, which also carries outgoing signals.
func NewServer(control Control, shell *Shell) *Server {
	return &Server{
		control:     control,
		shell:       shell,
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	err = conn.Export(s, ObjectPath, InterfaceName)
	if err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.shell.attach(conn)

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	if conn := s.shell.detach(); conn != nil {
		return conn.Close()
	}
	return nil
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func failed(method string, err error) *dbus.Error {
	log.Error().Err(err).Str("method", method).Msg("D-Bus call failed")
	return dbus.MakeFailedError(err)
}

// GetState returns the current controller state as a dictionary.
func (s *Server) GetState() (map[string]dbus.Variant, *dbus.Error) {
	snap := s.control.Snapshot()
	return map[string]dbus.Variant{
		"user_percent":     dbus.MakeVariant(snap.UserPercent),
		"factor":           dbus.MakeVariant(snap.Factor),
		"effective_gain":   dbus.MakeVariant(snap.EffectiveGain),
		"cap":              dbus.MakeVariant(snap.Cap.Cap),
		"active":           dbus.MakeVariant(snap.Active),
		"enabled":          dbus.MakeVariant(snap.Settings.Enabled),
		"auto_enabled":     dbus.MakeVariant(snap.Settings.AutoEnabled),
		"auto_state":       dbus.MakeVariant(snap.Auto.State.String()),
		"profile":          dbus.MakeVariant(snap.Settings.Profile),
		"lux":              dbus.MakeVariant(snap.Sensor.Estimate.Lux),
		"sensor_available": dbus.MakeVariant(snap.Sensor.Available),
		"hdr_active":       dbus.MakeVariant(snap.Gain.HDRActive),
		"ducking":          dbus.MakeVariant(snap.Gain.Ducking),
		"not_supported":    dbus.MakeVariant(snap.NotSupported),
		"recovering":       dbus.MakeVariant(snap.Recovering),
	}, nil
}

// SetUserPercent sets the brightness intent (0-100).
func (s *Server) SetUserPercent(percent float64) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetUserPercent")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.SetUserPercent(ctx, percent); err != nil {
		return failed("SetUserPercent", err)
	}

	s.shell.emitOrLog("PercentChanged", s.control.Snapshot().Settings.UserPercent)
	return nil
}

// IncreasePercent raises the intent by step, which must be between 1 and 100.
func (s *Server) IncreasePercent(step uint32) (float64, *dbus.Error) {
	return s.stepPercent("IncreasePercent", step, 1)
}

// DecreasePercent lowers the intent by step, which must be between 1 and 100.
func (s *Server) DecreasePercent(step uint32) (float64, *dbus.Error) {
	return s.stepPercent("DecreasePercent", step, -1)
}

func (s *Server) stepPercent(method string, step uint32, sign float64) (float64, *dbus.Error) {
	if !s.rateLimiter.Allow() {
		log.Warn().Str("method", method).Msg("Rate limit exceeded")
		return 0, dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if step == 0 || step > 100 {
		return 0, dbus.MakeFailedError(ErrInvalidStep)
	}

	ctx, cancel := callContext()
	defer cancel()

	percent, err := s.control.StepUserPercent(ctx, sign*float64(step))
	if err != nil {
		return 0, failed(method, err)
	}

	log.Debug().Uint32("step", step).Float64("percent", percent).Msg(method)
	s.shell.emitOrLog("PercentChanged", percent)
	return percent, nil
}

// SetEnabled engages or releases extended brightness by hand.
func (s *Server) SetEnabled(enabled bool) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.SetEnabled(ctx, enabled); err != nil {
		return failed("SetEnabled", err)
	}
	return nil
}

// SetAutoEnabled turns auto-control on or off.
func (s *Server) SetAutoEnabled(enabled bool) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.SetAutoEnabled(ctx, enabled); err != nil {
		return failed("SetAutoEnabled", err)
	}
	return nil
}

// SetProfile selects an auto profile by name.
func (s *Server) SetProfile(profile string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	err := s.control.SetProfile(ctx, profile)
	if errors.Is(err, auto.ErrUnknownProfile) {
		return dbus.MakeFailedError(fmt.Errorf("%w: %q", ErrUnknownProfile, profile))
	}
	if err != nil {
		return failed("SetProfile", err)
	}
	return nil
}

// SetGuard enables or disables the cap guard.
func (s *Server) SetGuard(enabled bool, factor float64) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.SetGuard(ctx, enabled, factor); err != nil {
		return failed("SetGuard", err)
	}
	return nil
}

// SetDuck replaces the HDR duck tuning.
func (s *Server) SetDuck(enabled bool, percent float64, durationMs uint32) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	duration := time.Duration(durationMs) * time.Millisecond
	if err := s.control.SetDuck(ctx, enabled, percent, duration); err != nil {
		return failed("SetDuck", err)
	}
	return nil
}

// SetSampleRate changes the sensor sampling rate.
func (s *Server) SetSampleRate(hz float64) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.SetSampleRate(ctx, hz); err != nil {
		return failed("SetSampleRate", err)
	}
	return nil
}

// CaptureDarkPoint stores the current sensor count as the dark offset.
func (s *Server) CaptureDarkPoint() (float64, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()

	x, err := s.control.CaptureDarkPoint(ctx)
	if err != nil {
		return 0, failed("CaptureDarkPoint", err)
	}
	return x, nil
}

// FitCalibration fits the lux curve through two (dx, lux) anchors.
func (s *Server) FitCalibration(dxA, luxA, dxB, luxB float64) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	a := als.Anchor{DX: dxA, Lux: luxA}
	b := als.Anchor{DX: dxB, Lux: luxB}
	if err := s.control.FitCalibration(ctx, a, b); err != nil {
		return failed("FitCalibration", err)
	}
	return nil
}

// ResetCalibration restores the factory calibration.
func (s *Server) ResetCalibration() *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()

	if err := s.control.ResetCalibration(ctx); err != nil {
		return failed("ResetCalibration", err)
	}
	return nil
}

// ReportHeadroom receives the displays' headroom from the extension. A
// change in the set of displays counts as a topology change.
func (s *Server) ReportHeadroom(displays []HeadroomReport) *dbus.Error {
	if s.shell.update(displays) {
		log.Info().Int("count", len(displays)).Msg("Display set changed")
		s.control.NotifyTopologyChanged()
	}
	return nil
}

// ReportHDR receives the extension's HDR content heuristic.
func (s *Server) ReportHDR(likely bool) *dbus.Error {
	s.shell.setHDR(likely)
	return nil
}

// TopologyChanged tells the controller the display configuration changed.
func (s *Server) TopologyChanged() *dbus.Error {
	s.control.NotifyTopologyChanged()
	return nil
}

// SpaceChanged tells the controller the active workspace changed.
func (s *Server) SpaceChanged() *dbus.Error {
	s.control.NotifySpaceChanged()
	return nil
}
