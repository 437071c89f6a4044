package als

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// EMA is an exponential moving average whose smoothing depends on the time
// elapsed between updates rather than on the update count.
type EMA struct {
	value  float64
	last   time.Time
	primed bool
}

// Update folds x into the average. The first update primes the filter to x.
// mult scales the per-update weight; a value of 1 gives the plain
// time-constant response.
func (f *EMA) Update(x float64, now time.Time, tau time.Duration, mult float64) float64 {
	if !f.primed {
		f.value = x
		f.last = now
		f.primed = true
		return f.value
	}

	f.value += Alpha(now.Sub(f.last), tau, mult) * (x - f.value)
	f.last = now
	return f.value
}

// Value returns the current filtered value.
func (f *EMA) Value() float64 { return f.value }

// Primed reports whether the filter has received a sample.
func (f *EMA) Primed() bool { return f.primed }

// Reset discards the filter state.
func (f *EMA) Reset() { *f = EMA{} }

// Alpha returns the update weight for an elapsed interval dt.
func Alpha(dt, tau time.Duration, mult float64) float64 {
	if dt <= 0 {
		return 0
	}
	if tau <= 0 {
		return 1
	}
	a := (1 - math.Exp(-dt.Seconds()/tau.Seconds())) * mult
	return lo.Clamp(a, 0, 1)
}
