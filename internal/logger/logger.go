package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/melih/containerpilot/internal/config"
)

// SetupLogger builds the process logger writing to out. Format "json" writes
// one JSON object per line; anything else uses the human-readable console writer.
// Commands pass stderr so log lines never mix with their table output.
func SetupLogger(cfg *config.LoggingConfig, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", "containerpilot").
		Str("host", hostname).
		Logger()
}
