// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/shini4i/edr-brightness-daemon/internal/udev"
)

// countingNotifier records controller notifications.
type countingNotifier struct {
	mu       sync.Mutex
	topology int
	sensor   int
}

func (c *countingNotifier) NotifyTopologyChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topology++
}

func (c *countingNotifier) NotifySensorChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor++
}

func (c *countingNotifier) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topology, c.sensor
}

func TestHotplugHandler(t *testing.T) {
	sensorSettleDelay = time.Millisecond

	tests := []struct {
		name     string
		event    udev.Event
		topology int
		sensor   int
	}{
		{
			name:     "display hotplug re-reads topology",
			event:    udev.Event{Type: udev.EventChange, Source: udev.SourceDisplay},
			topology: 1,
		},
		{
			name:   "sensor removal rebinds",
			event:  udev.Event{Type: udev.EventRemove, Source: udev.SourceSensor},
			sensor: 1,
		},
		{
			name:   "sensor arrival rebinds after settling",
			event:  udev.Event{Type: udev.EventAdd, Source: udev.SourceSensor},
			sensor: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &countingNotifier{}
			createHotplugHandler(n)(tt.event)

			assert.Eventually(t, func() bool {
				topology, sensor := n.counts()
				return topology == tt.topology && sensor == tt.sensor
			}, time.Second, 5*time.Millisecond)
		})
	}
}

func TestRecoveryHandler(t *testing.T) {
	n := &countingNotifier{}
	createRecoveryHandler(n)()

	topology, sensor := n.counts()
	assert.Equal(t, 1, topology)
	assert.Equal(t, 1, sensor)
}

// recordingApplier records settings handed to ApplySettings.
type recordingApplier struct {
	got []config.Settings
	err error
}

func (r *recordingApplier) ApplySettings(_ context.Context, s config.Settings) error {
	r.got = append(r.got, s)
	return r.err
}

func TestReloadHandler(t *testing.T) {
	target := &recordingApplier{}
	s := config.Defaults()
	s.UserPercent = 80

	createReloadHandler(target)(s)
	require.Len(t, target.got, 1)
	assert.Equal(t, 80.0, target.got[0].UserPercent)

	// errors are logged, not propagated
	target.err = errors.New("controller stopped")
	createReloadHandler(target)(s)
	assert.Len(t, target.got, 2)
}

func TestResolveConfigPath(t *testing.T) {
	path, err := resolveConfigPath("/tmp/custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", path)

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	path, err = resolveConfigPath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", config.AppName, "settings.yaml"), path)
}

func TestLogWriter_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	out, closer := logWriter(&console, "")
	assert.Nil(t, closer)
	assert.Same(t, &console, out)
}

func TestLogWriter_WithFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "daemon.log")

	out, closer := logWriter(&console, file)
	require.NotNil(t, closer)

	_, err := out.Write([]byte(`{"level":"info","message":"hello"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "hello")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
