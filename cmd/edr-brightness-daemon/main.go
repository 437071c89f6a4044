// Package main provides the entry point for the extended dynamic range brightness daemon.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/shini4i/edr-brightness-daemon/internal/controller"
	"github.com/shini4i/edr-brightness-daemon/internal/dbus"
	"github.com/shini4i/edr-brightness-daemon/internal/hid"
	"github.com/shini4i/edr-brightness-daemon/internal/metrics"
	"github.com/shini4i/edr-brightness-daemon/internal/udev"
)

const (
	// reloadTimeout bounds how long a settings reload waits for the controller.
	reloadTimeout = 2 * time.Second

	// shutdownTimeout bounds the metrics server shutdown.
	shutdownTimeout = 3 * time.Second
)

var (
	verbose      bool
	configPath   string
	logFile      string
	metricsAddr  string
	sensorSerial string
	noUdev       bool

	rootCmd = &cobra.Command{
		Use:   "edr-brightness-daemon",
		Short: "Ambient-aware extended dynamic range brightness daemon",
		Long: `edr-brightness-daemon drives brightness above the SDR ceiling on displays
with extended dynamic range headroom.

It reads the ambient light sensor, decides when extended brightness is worth
engaging, and hands the resulting gain to the GNOME Shell extension over D-Bus.
It stays within the headroom the displays report and ducks while HDR content
is on screen.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&configPath, "config", "c", "", "Settings file (default $XDG_CONFIG_HOME/"+config.AppName+"/settings.yaml)")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9477")
	flags.StringVar(&sensorSerial, "sensor-serial", "", "Bind only the ambient light sensor with this serial number")
	flags.BoolVar(&noUdev, "no-udev", false, "Disable hot-plug detection")
}

func run() {
	closeLog := setupLogging(verbose, logFile)
	defer closeLog()

	log.Info().Msg("Starting " + config.AppName)

	path, err := resolveConfigPath(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve settings path")
	}

	store := config.NewStore(path)
	settings, err := store.Load()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load settings, using defaults")
		settings = config.Defaults()
	}

	manager := hid.NewManager(hid.WithSerial(sensorSerial))
	shell := dbus.NewShell()

	opts := []controller.Option{
		controller.WithOverlay(shell),
		controller.WithHDRDetector(shell),
		controller.WithPersister(store),
	}

	var exporter *metrics.Exporter
	if metricsAddr != "" {
		exporter = metrics.NewExporter()
		opts = append(opts, controller.WithObserver(exporter))
	}

	ctrl := controller.New(manager, shell, shell, settings, opts...)

	server := dbus.NewServer(ctrl, shell)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start D-Bus server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Controller exited")
		}
	}()

	store.Watch(createReloadHandler(ctrl))

	var monitor *udev.Monitor
	if !noUdev {
		monitor = udev.NewMonitor(createHotplugHandler(ctrl))
		monitor.SetRecoveryHandler(createRecoveryHandler(ctrl))
		if err := monitor.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dbus.NewSleepWatcher(ctrl.NotifyWake).Run(ctx); err != nil {
			log.Warn().Err(err).Msg("Resume detection disabled")
		}
	}()

	var metricsServer *http.Server
	if exporter != nil {
		metricsServer = startMetricsServer(metricsAddr, exporter)
	}

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	<-ctx.Done()

	log.Info().Msg("Shutting down...")
	wg.Wait()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server")
		}
		cancel()
	}
	if monitor != nil {
		if err := monitor.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop udev monitor")
		}
	}
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop D-Bus server")
	}
	if err := manager.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close sensor")
	}

	log.Info().Msg("Daemon stopped")
}

func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return config.DefaultPath()
}

// settingsApplier is the part of the controller a reload needs.
type settingsApplier interface {
	ApplySettings(ctx context.Context, s config.Settings) error
}

// createReloadHandler returns a handler installing settings edited on disk.
func createReloadHandler(target settingsApplier) config.ChangeHandler {
	return func(s config.Settings) {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()

		if err := target.ApplySettings(ctx, s); err != nil {
			log.Error().Err(err).Msg("Failed to apply reloaded settings")
			return
		}
		log.Info().Msg("Settings reloaded from disk")
	}
}

func startMetricsServer(addr string, exporter *metrics.Exporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
