package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/geocoder89/identity/internal/actorctx"
)

func TestLogger_AddsActorUserID(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "test")

	ctx := actorctx.WithUserID(context.Background(), 42)
	log.InfoContext(ctx, "profile_read")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	if rec["user_id"] != float64(42) {
		t.Fatalf("expected user_id=42, got %v", rec["user_id"])
	}
	if _, ok := rec["trace_id"]; ok {
		t.Fatalf("no span in context, trace_id should be absent")
	}
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered outside dev, got %s", buf.String())
	}

	newLogger(&buf, "dev").Debug("shown")
	if buf.Len() == 0 {
		t.Fatalf("debug should be emitted in dev")
	}
}
