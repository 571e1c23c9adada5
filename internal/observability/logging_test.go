package observability_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/edwardmadi/eurodollar-protocol/internal/observability"
)

func TestNewLoggerLevelFromEnv(t *testing.T) {
	cases := []struct {
		env  string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"not-a-level", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		t.Setenv("EUD_LOG_LEVEL", tc.env)
		if got := observability.NewLogger("test").GetLevel(); got != tc.want {
			t.Errorf("EUD_LOG_LEVEL=%q: got level %s, want %s", tc.env, got, tc.want)
		}
	}
}

func logJSON(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return m
}

func TestCommandLoggerTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	log := observability.CommandLogger(base, "transfer", 42)
	log.Info().Msg("applied")

	m := logJSON(t, &buf)
	if m["command_type"] != "transfer" {
		t.Errorf("command_type = %v, want transfer", m["command_type"])
	}
	if m["source_sequence"] != float64(42) {
		t.Errorf("source_sequence = %v, want 42", m["source_sequence"])
	}
}

func TestRejectEventShape(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	observability.RejectEvent(base, "mint", "not_authorized").Msg("command rejected")

	m := logJSON(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["command_type"] != "mint" {
		t.Errorf("command_type = %v, want mint", m["command_type"])
	}
	if m["reason"] != "not_authorized" {
		t.Errorf("reason = %v, want not_authorized", m["reason"])
	}
}

func TestHashPrefix(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	got := observability.HashPrefix(hash)
	if got != "0001020304050607" {
		t.Errorf("HashPrefix = %q, want 0001020304050607", got)
	}
}
