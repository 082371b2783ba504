package ipcws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

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
	mu      sync.Mutex
	invoked []string
}

func (f *fakeBroadcast) Attach(ctx context.Context, sessionName, clientID string) (clientadapter.Subscription, model.Snapshot, error) {
	return &fakeSub{ch: make(chan any, 8)}, model.Snapshot{Seq: 1}, nil
}

func (f *fakeBroadcast) Invoke(ctx context.Context, sessionName, command string) (string, error) {
	f.mu.Lock()
	f.invoked = append(f.invoked, command)
	f.mu.Unlock()
	return "ok-output", nil
}

func (f *fakeBroadcast) Detach(sessionName, clientID string) {}

func (f *fakeBroadcast) Status(sessionName string) (registry.Status, bool) {
	return registry.Status{}, false
}

func (f *fakeBroadcast) StatusAll() []registry.Status { return nil }

func TestHandler_AttachSnapshotAndInvoke(t *testing.T) {
	bc := &fakeBroadcast{}
	ts := httptest.NewServer(&Handler{Broadcast: bc})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + ts.URL[len("http"):] + "?session=demo"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var env clientadapter.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Kind != clientadapter.EventSnapshot {
		t.Fatalf("expected snapshot, got %s", env.Kind)
	}

	cmd := clientadapter.Command{Kind: clientadapter.CommandInvoke, ID: "1", Command: "list-windows"}
	cmdData, _ := json.Marshal(cmd)
	if err := conn.Write(ctx, websocket.MessageText, cmdData); err != nil {
		t.Fatalf("write invoke: %v", err)
	}

	_, resultData, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read invoke result: %v", err)
	}
	var result clientadapter.InvokeResult
	if err := json.Unmarshal(resultData, &result); err != nil {
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

func TestHandler_MissingSessionIsRejected(t *testing.T) {
	bc := &fakeBroadcast{}
	ts := httptest.NewServer(&Handler{Broadcast: bc})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	wsURL := "ws" + ts.URL[len("http"):]
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatal("expected dial without a session query param to fail")
	}
}
