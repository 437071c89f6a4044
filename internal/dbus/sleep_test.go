package dbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestSleepWatcher_Handle(t *testing.T) {
	tests := []struct {
		name  string
		sig   *dbus.Signal
		wakes int
	}{
		{
			name:  "resume",
			sig:   &dbus.Signal{Name: logindInterface + ".PrepareForSleep", Body: []any{false}},
			wakes: 1,
		},
		{
			name:  "going to sleep",
			sig:   &dbus.Signal{Name: logindInterface + ".PrepareForSleep", Body: []any{true}},
			wakes: 0,
		},
		{
			name:  "other signal",
			sig:   &dbus.Signal{Name: logindInterface + ".SessionNew", Body: []any{false}},
			wakes: 0,
		},
		{
			name:  "malformed body",
			sig:   &dbus.Signal{Name: logindInterface + ".PrepareForSleep", Body: []any{"false"}},
			wakes: 0,
		},
		{
			name:  "empty body",
			sig:   &dbus.Signal{Name: logindInterface + ".PrepareForSleep"},
			wakes: 0,
		},
		{
			name:  "nil",
			sig:   nil,
			wakes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wakes := 0
			w := NewSleepWatcher(func() { wakes++ })
			w.handle(tt.sig)
			assert.Equal(t, tt.wakes, wakes)
		})
	}
}
