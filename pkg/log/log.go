package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. It discards everything until
// Init runs, so library code can log unconditionally and tests stay
// quiet.
var Logger = zerolog.Nop()

// Level names accepted by Init
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the root logger. Unknown levels fall back to info; the
// level is carried on the logger itself rather than the global filter
// so embedding processes keep their own zerolog settings.
func Init(cfg Config) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithCollection creates a child logger carrying the collection uuid,
// so one collection's mutations can be followed through a shared log
func WithCollection(uuid string) zerolog.Logger {
	return Logger.With().Str("collection", uuid).Logger()
}

// WithBackend creates a child logger with backend field
func WithBackend(name string) zerolog.Logger {
	return Logger.With().Str("backend", name).Logger()
}
