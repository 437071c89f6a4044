package dbus

import (
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/shini4i/edr-brightness-daemon/internal/gain"
)

// ErrNotConnected is returned when a gain cannot be delivered because the
// service is not on the bus.
var ErrNotConnected = errors.New("not connected to the session bus")

// HeadroomReport is one display's headroom as reported by the shell
// extension. Serializes to D-Bus type (sddb).
type HeadroomReport struct {
	DisplayID string
	Potential float64
	Reference float64
	BuiltIn   bool
}

// Shell holds what the shell extension reports about the displays and
// forwards gains and overlay requests back to it as signals. It satisfies the
// controller's Capabilities, HDRDetector, Applier and Overlay collaborators.
type Shell struct {
	connMu sync.RWMutex // Protects conn field only
	conn   *dbus.Conn

	mu       sync.RWMutex
	headroom []gain.Headroom
	hdr      bool
}

// NewShell creates an empty Shell. Until the extension reports, no display
// has headroom.
func NewShell() *Shell {
	return &Shell{}
}

func (s *Shell) attach(conn *dbus.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Shell) detach() *dbus.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	conn := s.conn
	s.conn = nil
	return conn
}

// emit sends a signal on the service interface.
func (s *Shell) emit(name string, values ...any) error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Emit(ObjectPath, InterfaceName+"."+name, values...)
}

// emitOrLog sends a signal, logging failures.
func (s *Shell) emitOrLog(name string, values ...any) {
	if err := s.emit(name, values...); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Error().Err(err).Str("signal", name).Msg("Failed to emit signal")
	}
}

// update replaces the stored readings and reports whether the set of
// displays changed.
func (s *Shell) update(reports []HeadroomReport) bool {
	readings := lo.Map(reports, func(r HeadroomReport, _ int) gain.Headroom {
		return gain.Headroom{
			DisplayID: r.DisplayID,
			Potential: r.Potential,
			Reference: r.Reference,
			Target:    r.BuiltIn,
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := func(hs []gain.Headroom) []string {
		return lo.Map(hs, func(h gain.Headroom, _ int) string { return h.DisplayID })
	}
	gone, added := lo.Difference(ids(s.headroom), ids(readings))
	changed := len(gone) > 0 || len(added) > 0
	s.headroom = readings
	return changed
}

func (s *Shell) setHDR(likely bool) {
	s.mu.Lock()
	s.hdr = likely
	s.mu.Unlock()
}

// Headroom returns the last reported readings.
func (s *Shell) Headroom() []gain.Headroom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gain.Headroom(nil), s.headroom...)
}

// AnyEDR reports whether any reported display has headroom above SDR.
func (s *Shell) AnyEDR() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.SomeBy(s.headroom, func(h gain.Headroom) bool { return h.Potential > 1 })
}

// HDRContentLikely returns the shell's last HDR report.
func (s *Shell) HDRContentLikely() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hdr
}

// ApplyGain emits GainChanged for the extension to apply.
func (s *Shell) ApplyGain(displayID string, g float64) error {
	if err := s.emit("GainChanged", displayID, g); err != nil {
		return err
	}
	log.Debug().Str("display", displayID).Float64("factor", g).Msg("Gain applied")
	return nil
}

// BeginRecovery asks the extension to force the full-size overlay.
func (s *Shell) BeginRecovery() {
	s.emitOrLog("RecoveryBurst", true)
}

// EndRecovery releases BeginRecovery.
func (s *Shell) EndRecovery() {
	s.emitOrLog("RecoveryBurst", false)
}

// DisplayNotSupported reports the confirmed capability state.
func (s *Shell) DisplayNotSupported(notSupported bool) {
	s.emitOrLog("DisplayNotSupported", notSupported)
}
