// SPDX-License-Identifier: GPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	// AppName names the settings directory.
	AppName = "edr-brightness-daemon"

	// EnvPrefix prefixes environment overrides, e.g. EDRD_SAMPLE_HZ.
	EnvPrefix = "EDRD"

	fileName = "settings.yaml"
)

// ChangeHandler receives settings reloaded after an external edit.
type ChangeHandler func(Settings)

// Store persists Settings in a YAML file through viper. It is safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	v         *viper.Viper
	path      string
	lastSaved Settings
	onChange  ChangeHandler
}

// DefaultPath returns the settings file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, AppName, fileName), nil
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Defaults())

	return &Store{v: v, path: path}
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load reads and clamps the settings. A missing file is created with the
// defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Defaults(), fmt.Errorf("failed to read settings %s: %w", s.path, err)
		}
		log.Info().Str("path", s.path).Msg("Settings file not found, writing defaults")
		if err := s.writeLocked(Defaults()); err != nil {
			return Defaults(), err
		}
		if err := s.v.ReadInConfig(); err != nil {
			return Defaults(), fmt.Errorf("failed to read settings %s: %w", s.path, err)
		}
	}

	settings, err := s.decodeLocked()
	if err != nil {
		return Defaults(), err
	}
	s.lastSaved = settings
	return settings, nil
}

// Save clamps and writes the settings.
func (s *Store) Save(settings Settings) error {
	settings.Clamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(settings); err != nil {
		return err
	}
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reread settings %s: %w", s.path, err)
	}
	s.lastSaved = settings
	log.Debug().Str("path", s.path).Msg("Settings saved")
	return nil
}

// Watch reloads the file on external edits and passes the clamped result to
// handler. Echoes of the store's own writes are suppressed.
func (s *Store) Watch(handler ChangeHandler) {
	s.mu.Lock()
	s.onChange = handler
	s.mu.Unlock()

	s.v.OnConfigChange(s.handleEvent)
	s.v.WatchConfig()
	log.Info().Str("path", s.path).Msg("Watching settings file")
}

func (s *Store) handleEvent(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	s.mu.Lock()
	settings, err := s.decodeLocked()
	if err != nil {
		s.mu.Unlock()
		log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring unreadable settings change")
		return
	}
	if settings == s.lastSaved {
		s.mu.Unlock()
		return
	}
	s.lastSaved = settings
	handler := s.onChange
	s.mu.Unlock()

	log.Info().Str("path", e.Name).Msg("Settings reloaded")
	if handler != nil {
		handler(settings)
	}
}

func (s *Store) decodeLocked() (Settings, error) {
	var settings Settings
	if err := s.v.Unmarshal(&settings); err != nil {
		return Defaults(), fmt.Errorf("failed to decode settings: %w", err)
	}
	settings.Clamp()
	return settings, nil
}

func (s *Store) writeLocked(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	// Writes go through a scratch instance so s.v never carries Set overrides.
	w := viper.New()
	w.SetConfigType("yaml")
	for key, value := range flatten(settings) {
		w.Set(key, value)
	}
	if err := w.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Settings) {
	for key, value := range flatten(d) {
		v.SetDefault(key, value)
	}
}

func flatten(s Settings) map[string]any {
	return map[string]any{
		"profile":              s.Profile,
		"auto_enabled":         s.AutoEnabled,
		"enabled":              s.Enabled,
		"user_percent":         s.UserPercent,
		"sample_hz":            s.SampleHz,
		"calibration.a":        s.Calibration.A,
		"calibration.p":        s.Calibration.P,
		"calibration.x_dark":   s.Calibration.XDark,
		"guard.enabled":        s.Guard.Enabled,
		"guard.factor":         s.Guard.Factor,
		"cap.safety_margin":    s.Cap.SafetyMargin,
		"cap.ceiling":          s.Cap.Ceiling,
		"duck.enabled":         s.Duck.Enabled,
		"duck.percent":         s.Duck.Percent,
		"duck.duration_ms":     s.Duck.DurationMs,
		"blend.sun_dx_trigger": s.Blend.SunDxTrigger,
		"blend.max_weight":     s.Blend.MaxWeight,
		"blend.exponent":       s.Blend.Exponent,
	}
}
