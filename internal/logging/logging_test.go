package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "dataset")).Warn(context.Background(), "epoch missing",
		Int("index", 7), Float("alpha", 0.25), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "epoch missing" || rec["level"] != "WARN" {
		t.Fatalf("record = %v", rec)
	}
	if rec["component"] != "dataset" || rec["index"] != float64(7) || rec["error"] != "boom" {
		t.Fatalf("record fields = %v", rec)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
}

func TestEnsureSessionIDIsStable(t *testing.T) {
	ctx, id := EnsureSessionID(context.Background())
	if id == "" {
		t.Fatalf("EnsureSessionID returned empty id")
	}
	_, again := EnsureSessionID(ctx)
	if again != id {
		t.Fatalf("second EnsureSessionID = %q, want %q", again, id)
	}
}

func TestContextLoggerRoundTrip(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on bare context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("expected noop logger stored for nil input")
	}
}
