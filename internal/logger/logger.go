// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type Config struct {
	Level      string `yaml:"level" json:"level"`
	Debug      bool   `yaml:"debug" json:"debug"`
	Output     string `yaml:"output" json:"output"` // stderr (default), stdout
	Format     string `yaml:"format" json:"format"` // auto (default), json, console
	TimeFormat string `yaml:"time_format" json:"time_format"`
}

func DefaultConfig() Config {
	return Config{
		Level:  getEnvOrDefault("GTIPSYNC_LOG_LEVEL", "info"),
		Debug:  getEnvBoolOrDefault("GTIPSYNC_DEBUG", false),
		Output: getEnvOrDefault("GTIPSYNC_LOG_OUTPUT", "stderr"),
		Format: getEnvOrDefault("GTIPSYNC_LOG_FORMAT", "auto"),
	}
}

// New builds a logger from cfg. When w is nil the configured output stream is used.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	var out io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	if w != nil {
		out = w
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if useConsole(cfg.Format, out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// WithComponent tags every event with the emitting component.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	value = strings.ToLower(value)

	return value == "true" || value == "1" || value == "yes" || value == "on"
}
