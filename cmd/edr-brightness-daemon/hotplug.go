// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/edr-brightness-daemon/internal/udev"
)

// sensorSettleDelay gives a new hidraw node time to get its permissions
// before the sensor is rebound.
var sensorSettleDelay = 500 * time.Millisecond

// notifier is the part of the controller hotplug events drive.
type notifier interface {
	NotifyTopologyChanged()
	NotifySensorChanged()
}

// createHotplugHandler routes udev events to the controller.
func createHotplugHandler(n notifier) udev.EventHandler {
	return func(event udev.Event) {
		switch event.Source {
		case udev.SourceDisplay:
			n.NotifyTopologyChanged()
		case udev.SourceSensor:
			if event.Type == udev.EventAdd {
				time.AfterFunc(sensorSettleDelay, n.NotifySensorChanged)
				return
			}
			n.NotifySensorChanged()
		}
	}
}

// createRecoveryHandler returns a handler for netlink buffer overflow
// recovery. Any event may have been lost, so both paths are refreshed.
func createRecoveryHandler(n notifier) udev.RecoveryHandler {
	return func() {
		log.Info().Msg("Performing recovery refresh after netlink buffer overflow")
		n.NotifyTopologyChanged()
		n.NotifySensorChanged()
	}
}
