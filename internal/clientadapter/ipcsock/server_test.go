package ipcsock

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tmuxbridge/internal/clientadapter"
	"tmuxbridge/internal/model"
	"tmuxbridge/internal/registry"
)

type fakeSub struct {
	ch   chan any
	once sync.Once
}

func (f *fakeSub) Recv() <-chan any { return f.ch }
func (f *fakeSub) Cancel()          { f.once.Do(func() { close(f.ch) }) }

type fakeBroadcast struct {
	mu         sync.Mutex
	invoked    []string
	attachArgs []string
	sub        *fakeSub
}

func (f *fakeBroadcast) Attach(ctx context.Context, sessionName, clientID string) (clientadapter.Subscription, model.Snapshot, error) {
	f.mu.Lock()
	f.attachArgs = append(f.attachArgs, sessionName)
	f.mu.Unlock()
	f.sub = &fakeSub{ch: make(chan any, 8)}
	return f.sub, model.Snapshot{Seq: 1}, nil
}

func (f *fakeBroadcast) Invoke(ctx context.Context, sessionName, command string) (string, error) {
	f.mu.Lock()
	f.invoked = append(f.invoked, command)
	f.mu.Unlock()
	return "ok-output", nil
}

func (f *fakeBroadcast) Detach(sessionName, clientID string) {}

func (f *fakeBroadcast) Status(sessionName string) (registry.Status, bool) {
	return registry.Status{SessionName: sessionName}, true
}

func (f *fakeBroadcast) StatusAll() []registry.Status { return nil }

func startTestServer(t *testing.T, bc *fakeBroadcast) (string, context.CancelFunc) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := &Server{SocketPath: sockPath, Broadcast: bc}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.ListenAndServe(ctx)
	time.Sleep(20 * time.Millisecond) // let the listener bind
	return sockPath, cancel
}

func TestServer_HandshakeAndAttachSnapshot(t *testing.T) {
	bc := &fakeBroadcast{}
	sockPath, cancel := startTestServer(t, bc)
	defer cancel()

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(HandshakeRequest{Session: "demo"}); err != nil {
		t.Fatalf("send handshake: %v", err)
	}
	var resp HandshakeResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("read handshake response: %v", err)
	}
	if !resp.OK {
		t.Fatalf("handshake rejected: %s", resp.Error)
	}

	frameType, payload, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read attach snapshot frame: %v", err)
	}
	if frameType != FrameTypeData {
		t.Fatalf("expected data frame, got %d", frameType)
	}
	var env clientadapter.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Kind != clientadapter.EventSnapshot {
		t.Fatalf("expected snapshot kind, got %s", env.Kind)
	}
}

func TestServer_InvokeRoundTrip(t *testing.T) {
	bc := &fakeBroadcast{}
	sockPath, cancel := startTestServer(t, bc)
	defer cancel()

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	json.NewEncoder(conn).Encode(HandshakeRequest{Session: "demo"})
	var resp HandshakeResponse
	json.NewDecoder(conn).Decode(&resp)
	ReadFrame(conn) // drain the attach snapshot

	cmd := clientadapter.Command{Kind: clientadapter.CommandInvoke, ID: "1", Command: "list-windows"}
	data, _ := json.Marshal(cmd)
	if err := WriteFrame(conn, FrameTypeControl, data); err != nil {
		t.Fatalf("write invoke: %v", err)
	}

	frameType, payload, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read invoke result: %v", err)
	}
	if frameType != FrameTypeControl {
		t.Fatalf("expected control frame, got %d", frameType)
	}
	var result clientadapter.InvokeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.OK || result.Output != "ok-output" {
		t.Fatalf("unexpected result: %+v", result)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.invoked) != 1 || bc.invoked[0] != "list-windows" {
		t.Fatalf("expected invoke to reach the broadcast, got %v", bc.invoked)
	}
}
