// SPDX-License-Identifier: GPL-3.0-only

// Package als turns raw ambient light sensor register reads into a filtered
// illuminance estimate.
package als

import (
	"encoding/binary"
	"math"
)

const (
	// FixedPointScale converts a 12.20 fixed-point register value to sensor counts.
	FixedPointScale = 1 << 20

	// MaxCount is the sensor-space ceiling for decoded counts.
	MaxCount = 2047.0

	// SaturationSentinel is the register value the sensor reports when pegged.
	SaturationSentinel int64 = math.MaxInt32

	// SaturationGuard is the near-max threshold at and above which a read is
	// treated as saturated.
	SaturationGuard int64 = 0x7FFFFF00

	// saturationMargin is how close to the signed 32-bit maximum a value may be
	// before it is treated as saturated.
	saturationMargin = 16

	// PayloadSize is the length of a little-endian register payload.
	PayloadSize = 4
)

// SampleKind tags the variant held by a Sample.
type SampleKind int

const (
	// SampleValue carries a usable sensor count in X.
	SampleValue SampleKind = iota
	// SampleSaturated means the sensor is pegged at its maximum.
	SampleSaturated
	// SampleInvalid means the read was garbage or the sensor is unavailable.
	SampleInvalid
)

// String returns a short name for the kind.
func (k SampleKind) String() string {
	switch k {
	case SampleValue:
		return "value"
	case SampleSaturated:
		return "saturated"
	case SampleInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sample is one decoded sensor reading. X is only meaningful for SampleValue.
type Sample struct {
	Kind SampleKind
	X    float64
}

// Value returns a SampleValue holding x.
func Value(x float64) Sample { return Sample{Kind: SampleValue, X: x} }

// Saturated returns a SampleSaturated.
func Saturated() Sample { return Sample{Kind: SampleSaturated} }

// Invalid returns a SampleInvalid.
func Invalid() Sample { return Sample{Kind: SampleInvalid} }

// Raw is an unparsed register read. When Payload is non-nil it takes
// precedence over Int.
type Raw struct {
	Int     int64
	Payload []byte
}

// RawInt wraps an integer register value.
func RawInt(v int64) Raw { return Raw{Int: v} }

// RawPayload wraps a little-endian register payload.
func RawPayload(b []byte) Raw { return Raw{Payload: b} }

// Decode converts a raw register read into a Sample.
func Decode(r Raw) Sample {
	if r.Payload != nil {
		return DecodePayload(r.Payload)
	}
	return DecodeInt(r.Int)
}

// DecodePayload decodes a little-endian 4-byte signed register payload.
// Payloads of any other length are invalid.
func DecodePayload(b []byte) Sample {
	if len(b) != PayloadSize {
		return Invalid()
	}
	v := int32(binary.LittleEndian.Uint32(b)) // #nosec G115 -- reinterpretation of the register's signed value
	return DecodeInt(int64(v))
}

// DecodeInt decodes an integer register value.
func DecodeInt(raw int64) Sample {
	if raw < 0 || raw > math.MaxInt32 {
		return Invalid()
	}
	if raw == SaturationSentinel || raw >= SaturationGuard || raw >= math.MaxInt32-saturationMargin {
		return Saturated()
	}
	x := float64(raw) / FixedPointScale
	return Value(math.Min(x, MaxCount))
}
