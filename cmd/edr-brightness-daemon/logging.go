package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// setupLogging configures the global logger and returns a function that
// flushes and closes the log file, if any.
func setupLogging(verbose bool, file string) func() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var console io.Writer = os.Stderr
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		console = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	out, closer := logWriter(console, file)
	log.Logger = log.Output(out)

	return func() {
		if closer == nil {
			return
		}
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close log file")
		}
	}
}

// logWriter returns console alone, or console and a rotating file.
func logWriter(console io.Writer, file string) (io.Writer, io.Closer) {
	if file == "" {
		return console, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
	}
	return zerolog.MultiLevelWriter(console, rotator), rotator
}
