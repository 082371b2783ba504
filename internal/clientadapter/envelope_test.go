package clientadapter

import (
	"encoding/json"
	"testing"

	"tmuxbridge/internal/model"
)

func TestEncodeEvent_Snapshot(t *testing.T) {
	env, err := EncodeEvent(model.Snapshot{Seq: 3})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Kind != EventSnapshot {
		t.Fatalf("kind = %s, want snapshot", env.Kind)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if snap.Seq != 3 {
		t.Fatalf("seq = %d, want 3", snap.Seq)
	}
}

func TestEncodeEvent_Delta(t *testing.T) {
	env, err := EncodeEvent(model.Delta{Seq: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Kind != EventDelta {
		t.Fatalf("kind = %s, want delta", env.Kind)
	}
}

func TestEncodeEvent_Close(t *testing.T) {
	env, err := EncodeEvent(model.CloseEvent{Reason: "exit"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Kind != EventClose {
		t.Fatalf("kind = %s, want close", env.Kind)
	}
}

func TestEncodeEvent_UnrecognizedType(t *testing.T) {
	if _, err := EncodeEvent("not a wire type"); err == nil {
		t.Fatal("expected an error for an unrecognized type")
	}
}
