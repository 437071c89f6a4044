// SPDX-License-Identifier: GPL-3.0-only

package als

import (
	"errors"
	"math"
	"time"

	"github.com/asecurityteam/rolling"
	"github.com/rs/zerolog/log"
)

// ErrSensorGone marks a read error caused by the sensor disappearing. Sensor
// implementations wrap it so the sampler can rebind without waiting for an
// invalid streak.
var ErrSensorGone = errors.New("sensor gone")

// ErrSensorUnavailable is returned when no sensor handle could be bound.
var ErrSensorUnavailable = errors.New("ambient light sensor unavailable")

// Sensor reads the ambient light register.
type Sensor interface {
	ReadRegister() (Raw, error)
}

// Binder acquires a fresh sensor handle, releasing any previous one.
type Binder interface {
	Bind() (Sensor, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func() (Sensor, error)

// Bind calls f.
func (f BinderFunc) Bind() (Sensor, error) { return f() }

// SamplerConfig holds the sampler's tuning.
type SamplerConfig struct {
	Blend BlendConfig

	// FilterGain scales the EMA weight of every update.
	FilterGain float64

	// SurrogateAfter is how long saturation must persist past the last good
	// sample before a surrogate value is synthesized.
	SurrogateAfter time.Duration
	// SurrogateTauScale shortens the filter time constant for surrogate samples.
	SurrogateTauScale float64
	// SurrogateGrowth scales the last good count when synthesizing.
	SurrogateGrowth float64
	// SurrogateMaxDxScale scales the rolling maximum when synthesizing.
	SurrogateMaxDxScale float64

	// SaturationRebindAfter is how long continuous saturation lasts before
	// the sensor handle is re-acquired.
	SaturationRebindAfter time.Duration
	// InvalidTicksBeforeRebind is the invalid streak that triggers a rebind.
	InvalidTicksBeforeRebind int
	// RebindRetryInterval spaces rebind attempts while the sensor is unavailable.
	RebindRetryInterval time.Duration

	// HistorySize is the number of recent estimates kept for diagnostics.
	HistorySize int
}

// DefaultSamplerConfig returns the shipped sampler tuning.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Blend:                    DefaultBlendConfig(),
		FilterGain:               1.0,
		SurrogateAfter:           500 * time.Millisecond,
		SurrogateTauScale:        0.7,
		SurrogateGrowth:          1.15,
		SurrogateMaxDxScale:      1.05,
		SaturationRebindAfter:    5 * time.Second,
		InvalidTicksBeforeRebind: 3,
		RebindRetryInterval:      10 * time.Second,
		HistorySize:              60,
	}
}

// Estimate is one published illuminance reading with its intermediate values.
type Estimate struct {
	Lux         float64
	DecodedX    float64
	SmoothedX   float64
	DX          float64
	LFit        float64
	LRel        float64
	BlendWeight float64
	Surrogate   bool
	At          time.Time
}

// Diagnostics is a copy of the sampler's state for debug views.
type Diagnostics struct {
	Estimate       Estimate
	MaxDx          float64
	Available      bool
	SawSaturation  bool
	SaturatedTicks uint64
	InvalidTicks   uint64
	Rebinds        uint64
	RebindFailures uint64
	RecentMeanLux  float64
	RecentMaxLux   float64
	Calibration    Calibrator
}

// Sampler turns one register read per tick into an illuminance estimate.
// It is not safe for concurrent use; the owner serializes calls.
type Sampler struct {
	cfg    SamplerConfig
	binder Binder
	sensor Sensor
	cal    Calibrator

	filter  EMA
	tracker RollingMax
	history *rolling.PointPolicy
	filled  int

	last       Estimate
	lastGoodX  float64
	lastGoodAt time.Time

	saturatedSince time.Time
	invalidStreak  int
	lastBindTry    time.Time

	saturatedTicks uint64
	invalidTicks   uint64
	rebinds        uint64
	rebindFailures uint64
}

// NewSampler creates a sampler. The sensor is bound lazily on the first tick.
func NewSampler(binder Binder, cal Calibrator, cfg SamplerConfig) *Sampler {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1
	}
	return &Sampler{
		cfg:     cfg,
		binder:  binder,
		cal:     cal,
		history: rolling.NewPointPolicy(rolling.NewWindow(cfg.HistorySize)),
	}
}

// Tick reads and processes one sample. It returns the current estimate and
// whether a new estimate was produced on this tick. When the sensor is
// unavailable the last estimate is returned unchanged.
func (s *Sampler) Tick(now time.Time, tau time.Duration) (Estimate, bool) {
	if s.sensor == nil && !s.retryBind(now) {
		return s.last, false
	}

	sample := Invalid()
	raw, err := s.sensor.ReadRegister()
	if err != nil {
		log.Debug().Err(err).Msg("Ambient light read failed")
		if errors.Is(err, ErrSensorGone) {
			s.invalidStreak = s.cfg.InvalidTicksBeforeRebind
		}
	} else {
		sample = Decode(raw)
	}

	switch sample.Kind {
	case SampleValue:
		s.invalidStreak = 0
		s.saturatedSince = time.Time{}
		s.lastGoodX = sample.X
		s.lastGoodAt = now
		return s.process(sample.X, now, tau, false), true

	case SampleSaturated:
		s.saturatedTicks++
		s.invalidStreak = 0
		s.tracker.MarkSaturated()
		if s.saturatedSince.IsZero() {
			s.saturatedSince = now
		}
		if now.Sub(s.saturatedSince) >= s.cfg.SaturationRebindAfter {
			log.Warn().Dur("saturatedFor", now.Sub(s.saturatedSince)).Msg("Ambient light sensor saturated, rebinding")
			s.saturatedSince = now
			if !s.rebind(now) {
				return s.last, false
			}
		}
		if s.lastGoodAt.IsZero() || now.Sub(s.lastGoodAt) > s.cfg.SurrogateAfter {
			x := s.surrogate()
			return s.process(x, now, scaleDuration(tau, s.cfg.SurrogateTauScale), true), true
		}
		return s.last, false

	case SampleInvalid:
		s.invalidTicks++
		s.invalidStreak++
		if s.invalidStreak >= s.cfg.InvalidTicksBeforeRebind {
			s.invalidStreak = 0
			log.Warn().Msg("Ambient light sensor returned invalid data, rebinding")
			s.rebind(now)
		}
		return s.last, false
	}

	return s.last, false
}

func (s *Sampler) process(x float64, now time.Time, tau time.Duration, surrogate bool) Estimate {
	smoothed := s.filter.Update(x, now, tau, s.cfg.FilterGain)
	dx := s.cal.DX(smoothed)
	s.tracker.Observe(dx, now)

	lfit := s.cal.EstimateLux(smoothed)
	lux, lrel, w := s.tracker.Blend(lfit, dx, now, s.cfg.Blend)

	s.last = Estimate{
		Lux:         lux,
		DecodedX:    x,
		SmoothedX:   smoothed,
		DX:          dx,
		LFit:        lfit,
		LRel:        lrel,
		BlendWeight: w,
		Surrogate:   surrogate,
		At:          now,
	}
	s.history.Append(lux)
	s.filled = min(s.filled+1, s.cfg.HistorySize)
	return s.last
}

// surrogate synthesizes a count for a saturated sensor that keeps rising
// with the observed peak.
func (s *Sampler) surrogate() float64 {
	floor := math.Max(s.tracker.MaxDx()*s.cfg.SurrogateMaxDxScale, s.cfg.Blend.SunDxTrigger)
	x := math.Max(s.lastGoodX*s.cfg.SurrogateGrowth, s.cal.XDark+floor)
	return math.Min(x, MaxCount)
}

func (s *Sampler) retryBind(now time.Time) bool {
	if !s.lastBindTry.IsZero() && now.Sub(s.lastBindTry) < s.cfg.RebindRetryInterval {
		return false
	}
	return s.rebind(now)
}

func (s *Sampler) rebind(now time.Time) bool {
	if !s.lastBindTry.IsZero() {
		s.rebinds++
	}
	s.lastBindTry = now

	if s.binder == nil {
		s.sensor = nil
		s.rebindFailures++
		return false
	}

	sensor, err := s.binder.Bind()
	if err != nil || sensor == nil {
		s.sensor = nil
		s.rebindFailures++
		log.Warn().Err(err).Msg("Ambient light sensor unavailable")
		return false
	}

	s.sensor = sensor
	log.Info().Uint64("rebinds", s.rebinds).Msg("Ambient light sensor bound")
	return true
}

// ForceRebind drops the current handle and binds a fresh one immediately.
func (s *Sampler) ForceRebind(now time.Time) bool {
	s.invalidStreak = 0
	s.saturatedSince = time.Time{}
	return s.rebind(now)
}

// Available reports whether a sensor handle is currently bound.
func (s *Sampler) Available() bool {
	return s.sensor != nil
}

// Last returns the most recent estimate.
func (s *Sampler) Last() Estimate {
	return s.last
}

// Calibrator returns the active calibration.
func (s *Sampler) Calibrator() Calibrator {
	return s.cal
}

// SetCalibrator replaces the calibration and restarts the rolling maximum,
// whose counts are relative to the dark offset.
func (s *Sampler) SetCalibrator(c Calibrator) {
	s.cal = c
	s.tracker.Reset()
}

// SetBlend replaces the relative-model constants.
func (s *Sampler) SetBlend(b BlendConfig) {
	s.cfg.Blend = b
}

// CaptureDark sets the dark offset to the current smoothed count. It returns
// the captured value, or false when no sample has been filtered yet.
func (s *Sampler) CaptureDark() (float64, bool) {
	if !s.filter.Primed() {
		return 0, false
	}
	s.cal.CaptureDark(s.filter.Value())
	s.tracker.Reset()
	return s.cal.XDark, true
}

// FitCalibration fits the power-law constants from two anchors.
func (s *Sampler) FitCalibration(a, b Anchor) bool {
	if !s.cal.FitTwoAnchors(a, b) {
		return false
	}
	s.tracker.Reset()
	return true
}

// Reset discards filter and rolling-maximum state, keeping the sensor handle.
func (s *Sampler) Reset() {
	s.filter.Reset()
	s.tracker.Reset()
	s.saturatedSince = time.Time{}
	s.invalidStreak = 0
	s.history = rolling.NewPointPolicy(rolling.NewWindow(s.cfg.HistorySize))
	s.filled = 0
}

// Diagnostics returns a copy of the sampler state.
func (s *Sampler) Diagnostics() Diagnostics {
	return Diagnostics{
		Estimate:       s.last,
		MaxDx:          s.tracker.MaxDx(),
		Available:      s.sensor != nil,
		SawSaturation:  s.tracker.SawSaturation(),
		SaturatedTicks: s.saturatedTicks,
		InvalidTicks:   s.invalidTicks,
		Rebinds:        s.rebinds,
		RebindFailures: s.rebindFailures,
		RecentMeanLux:  s.recentMean(),
		RecentMaxLux:   s.history.Reduce(rolling.Max),
		Calibration:    s.cal,
	}
}

// recentMean averages the estimates appended so far. Unfilled buckets of the
// window hold zeros and are left out.
func (s *Sampler) recentMean() float64 {
	if s.filled == 0 {
		return 0
	}
	return s.history.Reduce(rolling.Sum) / float64(s.filled)
}

func scaleDuration(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
