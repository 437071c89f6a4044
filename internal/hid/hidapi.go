package hid

import (
	"fmt"

	karalabehid "github.com/karalabe/hid"
)

// HIDAPIDevice wraps a karalabe/hid device to implement the Device interface.
type HIDAPIDevice struct {
	device karalabehid.Device // karalabe/hid.Device is an interface
	info   DeviceInfo
}

// Verify HIDAPIDevice implements Device interface.
var _ Device = (*HIDAPIDevice)(nil)

// NewHIDAPIDevice creates a new HIDAPIDevice from an open hid.Device.
func NewHIDAPIDevice(device karalabehid.Device, info DeviceInfo) *HIDAPIDevice {
	return &HIDAPIDevice{
		device: device,
		info:   info,
	}
}

// GetFeatureReport reads a feature report from the device.
func (d *HIDAPIDevice) GetFeatureReport(data []byte) (int, error) {
	return d.device.GetFeatureReport(data)
}

// Close closes the device handle.
func (d *HIDAPIDevice) Close() error {
	return d.device.Close()
}

// Info returns information about the device.
func (d *HIDAPIDevice) Info() DeviceInfo {
	return d.info
}

func isAmbientLight(d karalabehid.DeviceInfo) bool {
	return d.UsagePage == SensorUsagePage && d.Usage == AmbientLightUsage
}

func convertInfo(d karalabehid.DeviceInfo) DeviceInfo {
	return DeviceInfo{
		Path:         d.Path,
		VendorID:     d.VendorID,
		ProductID:    d.ProductID,
		Serial:       d.Serial,
		Manufacturer: d.Manufacturer,
		Product:      d.Product,
		UsagePage:    d.UsagePage,
		Usage:        d.Usage,
		Interface:    d.Interface,
	}
}

// EnumerateSensors returns every connected HID ambient light sensor.
func EnumerateSensors() ([]DeviceInfo, error) {
	devices, err := karalabehid.Enumerate(0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}

	var sensors []DeviceInfo
	for _, device := range devices {
		if isAmbientLight(device) {
			sensors = append(sensors, convertInfo(device))
		}
	}
	return sensors, nil
}

// OpenSensor opens the sensor at info.Path.
func OpenSensor(info DeviceInfo) (Device, error) {
	devices, err := karalabehid.Enumerate(info.VendorID, info.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, deviceInfo := range devices {
		if deviceInfo.Path != info.Path {
			continue
		}

		device, err := deviceInfo.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open sensor %s: %w", deviceInfo.Path, err)
		}
		return NewHIDAPIDevice(device, convertInfo(deviceInfo)), nil
	}

	return nil, fmt.Errorf("sensor %s not found", info.Path)
}
