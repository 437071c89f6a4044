package als_test

import (
	"math"
	"testing"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/stretchr/testify/assert"
)

func TestDecodeInt(t *testing.T) {
	tests := []struct {
		name     string
		raw      int64
		expected als.Sample
	}{
		{
			name:     "zero decodes to zero counts",
			raw:      0,
			expected: als.Value(0),
		},
		{
			name:     "one count in 12.20 fixed point",
			raw:      1 << 20,
			expected: als.Value(1),
		},
		{
			name:     "fractional counts are preserved",
			raw:      3 << 19,
			expected: als.Value(1.5),
		},
		{
			name:     "values above the sensor ceiling are clamped",
			raw:      int64(2047.5 * als.FixedPointScale),
			expected: als.Value(als.MaxCount),
		},
		{
			name:     "sentinel is saturated",
			raw:      als.SaturationSentinel,
			expected: als.Saturated(),
		},
		{
			name:     "near-max guard is saturated",
			raw:      als.SaturationGuard,
			expected: als.Saturated(),
		},
		{
			name:     "within 16 of int32 max is saturated",
			raw:      math.MaxInt32 - 16,
			expected: als.Saturated(),
		},
		{
			name:     "negative is invalid",
			raw:      -1,
			expected: als.Invalid(),
		},
		{
			name:     "beyond int32 is invalid",
			raw:      1 << 40,
			expected: als.Invalid(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, als.DecodeInt(tt.raw))
		})
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected als.Sample
	}{
		{
			name:     "little-endian one count",
			payload:  []byte{0x00, 0x00, 0x10, 0x00},
			expected: als.Value(1),
		},
		{
			name:     "little-endian 1200 counts",
			payload:  []byte{0x00, 0x00, 0x00, 0x4B},
			expected: als.Value(1200),
		},
		{
			name:     "int32 max is saturated",
			payload:  []byte{0xFF, 0xFF, 0xFF, 0x7F},
			expected: als.Saturated(),
		},
		{
			name:     "sign bit set is invalid",
			payload:  []byte{0xFF, 0xFF, 0xFF, 0xFF},
			expected: als.Invalid(),
		},
		{
			name:     "short payload is invalid",
			payload:  []byte{0x00, 0x10, 0x00},
			expected: als.Invalid(),
		},
		{
			name:     "empty payload is invalid",
			payload:  []byte{},
			expected: als.Invalid(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, als.DecodePayload(tt.payload))
		})
	}
}

func TestDecode_PayloadTakesPrecedence(t *testing.T) {
	r := als.Raw{Int: 5 << 20, Payload: []byte{0x00, 0x00, 0x10, 0x00}}
	assert.Equal(t, als.Value(1), als.Decode(r))
	assert.Equal(t, als.Value(5), als.Decode(als.RawInt(5<<20)))
}

func TestSampleKind_String(t *testing.T) {
	assert.Equal(t, "value", als.SampleValue.String())
	assert.Equal(t, "saturated", als.SampleSaturated.String())
	assert.Equal(t, "invalid", als.SampleInvalid.String())
	assert.Equal(t, "unknown", als.SampleKind(42).String())
}
