// Package observability carries the service's logging, metrics, and health
// surfaces. Log lines are structured JSON on stdout; the command path tags
// every line with the fields operators filter on: command type, sequence,
// and reject reason.
package observability

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the component's child logger. Level comes from
// EUD_LOG_LEVEL (any name zerolog knows: trace, debug, info, warn, error);
// unset or unknown means info.
func NewLogger(component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if s := os.Getenv("EUD_LOG_LEVEL"); s != "" {
		if parsed, err := zerolog.ParseLevel(s); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// CommandLogger tags a logger with the identity of one command, so every
// line emitted while handling it correlates in search.
func CommandLogger(log zerolog.Logger, commandType string, sourceSequence int64) zerolog.Logger {
	return log.With().
		Str("command_type", commandType).
		Int64("source_sequence", sourceSequence).
		Logger()
}

// RejectEvent is the one warn-level shape for command rejections: the
// taxonomy label next to the command type, never a bare error string.
func RejectEvent(log zerolog.Logger, commandType, reason string) *zerolog.Event {
	return log.Warn().
		Str("command_type", commandType).
		Str("reason", reason)
}

// HashPrefix renders the first eight bytes of a state hash for routine log
// lines. Full hashes only appear on chain breaks, where the whole value is
// the evidence.
func HashPrefix(hash [32]byte) string {
	return hex.EncodeToString(hash[:8])
}

func init() {
	// Timestamps in RFC3339 with nanosecond precision
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
