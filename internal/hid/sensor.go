package hid

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
)

const (
	// ReportID is the HID report ID of the illuminance feature report.
	ReportID byte = 0x01

	// ReportSize is the size of the feature report: the report ID followed by
	// the 4-byte little-endian register.
	ReportSize = 1 + als.PayloadSize

	// SensorUsagePage is the HID usage page for sensors.
	SensorUsagePage uint16 = 0x0020

	// AmbientLightUsage is the HID sensor usage for ambient light.
	AmbientLightUsage uint16 = 0x0041
)

// ErrSensorClosed is returned when a read is attempted on a closed sensor.
var ErrSensorClosed = errors.New("sensor is closed")

// goneMarkers are substrings hidapi backends use when the device vanished.
var goneMarkers = []string{
	"no such device",
	"device not found",
	"device disconnected",
	"input/output error",
}

// IsDeviceGoneError reports whether err means the device was unplugged or
// its handle is no longer usable.
func IsDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range goneMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Sensor reads the illuminance register of one HID ambient light sensor.
// All methods are safe for concurrent use.
type Sensor struct {
	device Device
	mu     sync.Mutex
	closed bool
}

var _ als.Sensor = (*Sensor)(nil)

// NewSensor wraps an open HID device.
func NewSensor(device Device) *Sensor {
	return &Sensor{device: device}
}

// ReadRegister reads the feature report and returns its payload. Errors
// caused by a vanished device wrap als.ErrSensorGone.
func (s *Sensor) ReadRegister() (als.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return als.Raw{}, ErrSensorClosed
	}

	data := make([]byte, ReportSize)
	data[0] = ReportID

	n, err := s.device.GetFeatureReport(data)
	if err != nil {
		if IsDeviceGoneError(err) {
			return als.Raw{}, fmt.Errorf("failed to get feature report: %w: %w", als.ErrSensorGone, err)
		}
		return als.Raw{}, fmt.Errorf("failed to get feature report: %w", err)
	}
	if n < 1 {
		return als.Raw{}, fmt.Errorf("empty feature report")
	}

	// a short report decodes as an invalid sample
	return als.RawPayload(data[1:min(n, ReportSize)]), nil
}

// Info returns the underlying device description.
func (s *Sensor) Info() DeviceInfo {
	return s.device.Info()
}

// Close closes the underlying HID device.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.device.Close()
}
