package registry

import (
	"context"
	"testing"
	"time"

	"tmuxbridge/internal/config"
	"tmuxbridge/internal/controlmode"
	"tmuxbridge/internal/model"
	"tmuxbridge/internal/socketdir"
)

func withTempBridgeDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMUXBRIDGE_DIR", dir)
	config.ResetResolveCache()
	socketdir.ResetDirCache()
}

// fakeConnectFails stands in for a real control-mode connect in tests: it never
// actually forks a multiplexer, it just fails deterministically so we can
// exercise Attach's error path without a real tmux binary.
func fakeConnectFails(ctx context.Context, sessionName string) (*controlmode.Connection, error) {
	return nil, context.DeadlineExceeded
}

func TestRegistry_AttachPropagatesConnectError(t *testing.T) {
	withTempBridgeDir(t)
	r := New(ConnectorFunc(fakeConnectFails), time.Minute, 8)

	_, _, err := r.Attach(context.Background(), "demo", "client-1")
	if err == nil {
		t.Fatal("expected an error from a failing connector")
	}
	if mon := r.Lookup("demo"); mon != nil {
		t.Fatal("a failed attach must not leave a Monitor registered")
	}
}

func TestRegistry_InvokeWithNoMonitorFails(t *testing.T) {
	withTempBridgeDir(t)
	r := New(ConnectorFunc(fakeConnectFails), time.Minute, 8)

	_, err := r.Invoke(context.Background(), "nope", "list-windows")
	if err == nil {
		t.Fatal("expected ErrNoMonitor for an unknown session")
	}
}

func TestRegistry_DetachUnknownSessionIsNoOp(t *testing.T) {
	withTempBridgeDir(t)
	r := New(ConnectorFunc(fakeConnectFails), time.Minute, 8)
	r.Detach("nope", "client-1") // must not panic
}

func TestSessionLock_SecondAcquireFails(t *testing.T) {
	withTempBridgeDir(t)

	l1, err := AcquireSessionLock("demo")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer l1.Release()

	if _, err := AcquireSessionLock("demo"); err == nil {
		t.Fatal("expected second acquire of the same session to fail")
	}
}

func TestSessionLock_ReleaseThenReacquire(t *testing.T) {
	withTempBridgeDir(t)

	l1, err := AcquireSessionLock("demo")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	l2, err := AcquireSessionLock("demo")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	l2.Release()
}

func TestMonitor_AddRemoveClientArmsAndCancelsGrace(t *testing.T) {
	m := newMonitor("demo", ConnectorFunc(fakeConnectFails), 10*time.Millisecond)
	m.state = stateLive // simulate a started monitor without a real connection

	sub := m.addClient("c1", 4)
	if sub == nil {
		t.Fatal("expected a subscription")
	}

	expired := make(chan struct{})
	m.removeClient("c1", func() { close(expired) })

	// Re-attaching before the grace period elapses must cancel teardown.
	m.addClient("c2", 4)
	select {
	case <-expired:
		t.Fatal("grace timer fired despite a re-attach")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestMonitor_GraceExpiryFiresOnExpire(t *testing.T) {
	m := newMonitor("demo", ConnectorFunc(fakeConnectFails), 5*time.Millisecond)
	m.state = stateLive
	m.addClient("c1", 4)

	expired := make(chan struct{})
	m.removeClient("c1", func() { close(expired) })

	select {
	case <-expired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("grace timer never fired")
	}
}

func TestMonitor_SnapshotFansOutAndClearsLagging(t *testing.T) {
	m := newMonitor("demo", ConnectorFunc(fakeConnectFails), time.Minute)
	m.state = stateLive
	sub := m.addClient("c1", 1) // lastFull is zero-valued, so addClient sends nothing yet

	// Fill the queue so the client is marked lagging on the next Delta.
	sub.ch <- struct{}{}
	m.Delta("demo", model.Delta{Seq: 1})
	<-sub.ch // drain the filler

	m.Snapshot("demo", model.Snapshot{Seq: 2})
	select {
	case <-sub.Recv():
	default:
		t.Fatal("expected the snapshot to be delivered even while lagging")
	}
	if m.clients["c1"].lagging {
		t.Fatal("expected the delivered snapshot to clear the lagging flag")
	}
}

func TestMonitor_StatusReflectsStateAndClientCount(t *testing.T) {
	m := newMonitor("demo", ConnectorFunc(fakeConnectFails), time.Minute)
	m.state = stateLive
	m.addClient("c1", 4)
	m.Snapshot("demo", model.Snapshot{Seq: 5})

	st := m.status()
	if st.SessionName != "demo" || st.State != "live" || st.ClientCount != 1 || st.LastSeq != 5 {
		t.Fatalf("unexpected status: %+v", st)
	}
}
