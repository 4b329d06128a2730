package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/skyguard/skyguard/internal/config"
)

// New constructs the process-wide slog.Logger. Output goes to stdout in the
// configured format and every record carries the service attribute, so log
// lines from co-located services stay distinguishable.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	handler, err := buildHandler(cfg)
	if err != nil {
		return nil, err
	}

	return slog.New(handler).With("service", "skyguard"), nil
}

// Discard returns a logger that drops every record. Used by tests and as a
// placeholder before configuration is loaded.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildHandler(cfg config.LoggingConfig) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(os.Stdout, opts), nil
	case "text":
		return slog.NewTextHandler(os.Stdout, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}
