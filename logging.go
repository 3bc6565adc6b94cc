package lineage

import (
	"io"
	"log/slog"
	"math"
)

// nopLogger returns a logger that drops everything. The hierarchy builder
// uses it to silence the per-round coupling computations.
func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(math.MaxInt), // never enabled, like slog.DiscardHandler
	}))
}

// orDefault resolves a nil options logger to the process default.
func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
