package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Log lines never carry
// plaintext sign-up fields; services log hashes only.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
