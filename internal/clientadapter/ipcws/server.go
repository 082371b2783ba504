// Package ipcws implements the default, browser-reachable WebSocket
// transport for the client adapter capability set (spec §4.5), grounded
// on the teacher-adjacent wingthing project's ws.Client (typed JSON
// envelope, heartbeat ticker) and built on github.com/coder/websocket.
// Unlike wingthing's outbound dialing client, this is the accept side: one
// session attaches per socket, `snapshot`/`delta`/`error`/`close` flow
// server->client and `invoke`/`resize`/`detach` flow client->server.
package ipcws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"tmuxbridge/internal/clientadapter"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
	readLimitBytes    = 4 * 1024 * 1024
)

// Handler is an http.Handler that upgrades requests to WebSocket
// connections and serves one attach/invoke session per connection.
type Handler struct {
	Broadcast clientadapter.Broadcast
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "missing session query parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(readLimitBytes)
	defer conn.CloseNow()

	clientID := uuid.NewString()
	ctx := r.Context()

	sub, snap, err := h.Broadcast.Attach(ctx, session, clientID)
	if err != nil {
		writeJSON(ctx, conn, clientadapter.Envelope{Kind: clientadapter.EventError, Payload: errorPayload(err)})
		conn.Close(websocket.StatusNormalClosure, "attach failed")
		return
	}
	defer h.Broadcast.Detach(session, clientID)
	defer sub.Cancel()

	if env, err := clientadapter.EncodeEvent(snap); err == nil {
		writeJSON(ctx, conn, env)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go h.readCommands(connCtx, conn, session, cancel)
	h.writeEvents(connCtx, conn, sub)
}

func (h *Handler) writeEvents(ctx context.Context, conn *websocket.Conn, sub clientadapter.Subscription) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-sub.Recv():
			if !ok {
				return
			}
			env, err := clientadapter.EncodeEvent(v)
			if err != nil {
				continue
			}
			if err := writeJSON(ctx, conn, env); err != nil {
				return
			}
			if env.Kind == clientadapter.EventClose {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) readCommands(ctx context.Context, conn *websocket.Conn, session string, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd clientadapter.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Kind {
		case clientadapter.CommandInvoke:
			h.handleInvoke(ctx, conn, session, cmd)
		case clientadapter.CommandResize:
			resizeCmd := resizePaneCommand(cmd)
			h.handleInvoke(ctx, conn, session, clientadapter.Command{ID: cmd.ID, Command: resizeCmd})
		case clientadapter.CommandDetach:
			return
		}
	}
}

func (h *Handler) handleInvoke(ctx context.Context, conn *websocket.Conn, session string, cmd clientadapter.Command) {
	out, err := h.Broadcast.Invoke(ctx, session, cmd.Command)
	result := clientadapter.InvokeResult{Kind: clientadapter.CommandInvoke, ID: cmd.ID, OK: err == nil, Output: out}
	if err != nil {
		result.Error = err.Error()
	}
	writeJSON(ctx, conn, result)
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func errorPayload(err error) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"kind": "no_monitor", "message": err.Error()})
	return data
}
