// Package log centralizes logger construction for ragchat.
//
// Logger is an alias for *slog.Logger: components take it as a constructor
// argument and narrow it with With("component", ...) rather than reaching
// for a global. NewWithWriter exists so tests can capture output; NewNop
// discards everything and belongs in tests only.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is what components accept as a dependency. Aliasing the standard
// library type keeps the whole slog surface (With, Handler, levels)
// available without an adapter.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New returns a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop returns a logger that drops everything. Test use only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
