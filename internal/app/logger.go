package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger for the server and worker
// binaries. LOG_FORMAT=json selects the structured handler used in
// deployed environments; anything else gets the readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
