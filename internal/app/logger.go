package app

import (
	"io"
	"log/slog"
	"os"
)

var secretAttrs = map[string]struct{}{
	"key":      {},
	"password": {},
	"hash":     {},
}

// NewLogger returns a configured slog.Logger based on configuration. It
// writes to stderr so the terminal client keeps stdout for command output.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, ReplaceAttr: redact}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretAttrs[a.Key]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
