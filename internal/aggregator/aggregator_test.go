package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"tmuxbridge/internal/controlmode"
	"tmuxbridge/internal/model"
)

type fakeBroadcast struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
	deltas    []model.Delta
	closed    []string
}

func (f *fakeBroadcast) Snapshot(_ string, snap model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snap)
}

func (f *fakeBroadcast) Delta(_ string, d model.Delta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, d)
}

func (f *fakeBroadcast) Close(_ string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, reason)
}

func (f *fakeBroadcast) deltaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deltas)
}

func (f *fakeBroadcast) lastDelta() model.Delta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deltas[len(f.deltas)-1]
}

type fakeSender struct{}

func (fakeSender) Send(context.Context, string) (string, error) { return "", nil }

func TestAggregator_EmitsFullSnapshotOnAttach(t *testing.T) {
	events := make(chan controlmode.Event)
	bc := &fakeBroadcast{}
	agg := New("S", fakeSender{}, events, bc, 10*time.Millisecond, time.Hour)
	agg.model.AddWindow(&model.Window{ID: "@1", Name: "main"})
	agg.model.AddPane(model.NewPane("%1", "@1", 80, 24))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	bc.mu.Lock()
	n := len(bc.snapshots)
	bc.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 snapshot, got %d", n)
	}
}

func TestAggregator_DebouncesPaneOutput(t *testing.T) {
	events := make(chan controlmode.Event, 10)
	bc := &fakeBroadcast{}
	agg := New("S", fakeSender{}, events, bc, 15*time.Millisecond, time.Hour)
	agg.model.AddWindow(&model.Window{ID: "@1", Name: "main"})
	agg.model.AddPane(model.NewPane("%1", "@1", 80, 24))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)
	time.Sleep(5 * time.Millisecond) // let the initial Full snapshot land

	for _, b := range []byte("hello") {
		events <- controlmode.Event{Kind: controlmode.EventOutput, PaneID: "%1", Data: []byte{b}}
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(40 * time.Millisecond)
	if got := bc.deltaCount(); got != 1 {
		t.Fatalf("expected exactly 1 coalesced delta, got %d", got)
	}
	d := bc.lastDelta()
	pd := d.Panes["%1"]
	if pd == nil {
		t.Fatal("expected a pane delta for %1")
	}
	row0, ok := pd.Content[0]
	if !ok {
		t.Fatal("expected row 0 in the coalesced delta")
	}
	got := string(runesOf(row0)[:5])
	if got != "hello" {
		t.Fatalf("row 0 = %q, want prefix hello", got)
	}
}

func TestAggregator_ZeroByteOutputProducesNoDelta(t *testing.T) {
	events := make(chan controlmode.Event, 1)
	bc := &fakeBroadcast{}
	agg := New("S", fakeSender{}, events, bc, 10*time.Millisecond, time.Hour)
	agg.model.AddWindow(&model.Window{ID: "@1", Name: "main"})
	agg.model.AddPane(model.NewPane("%1", "@1", 80, 24))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	events <- controlmode.Event{Kind: controlmode.EventOutput, PaneID: "%1", Data: nil}
	time.Sleep(30 * time.Millisecond)
	if got := bc.deltaCount(); got != 0 {
		t.Fatalf("expected no delta for zero-byte output, got %d", got)
	}
}

func TestAggregator_WindowChangeBypassesDebounce(t *testing.T) {
	events := make(chan controlmode.Event, 1)
	bc := &fakeBroadcast{}
	agg := New("S", fakeSender{}, events, bc, time.Hour, time.Hour)
	agg.model.AddWindow(&model.Window{ID: "@1", Name: "main"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	agg.model.AddWindow(&model.Window{ID: "@2", Name: "second"})
	events <- controlmode.Event{Kind: controlmode.EventWindowAdd, Raw: "%window-add @2"}

	time.Sleep(20 * time.Millisecond)
	if got := bc.deltaCount(); got != 1 {
		t.Fatalf("expected 1 immediate delta for window change, got %d", got)
	}
}

func TestAggregator_ExitTransitionsToTerminal(t *testing.T) {
	events := make(chan controlmode.Event, 1)
	bc := &fakeBroadcast{}
	agg := New("S", fakeSender{}, events, bc, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	events <- controlmode.Event{Kind: controlmode.EventExit}
	time.Sleep(20 * time.Millisecond)

	if agg.State() != StateTerminal {
		t.Fatalf("state = %v, want Terminal", agg.State())
	}
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.closed) != 1 {
		t.Fatalf("expected 1 close event, got %d", len(bc.closed))
	}
}

func runesOf(row model.Row) []byte {
	out := make([]byte, len(row))
	for i, c := range row {
		out[i] = byte(c.Char)
	}
	return out
}
