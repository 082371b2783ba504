// Package ipcsock implements the same-host embedded IPC transport for the
// client adapter capability set (spec §4.5): a Unix-domain-socket,
// length-prefixed framed protocol grounded directly on the teacher's
// session/message/protocol.go and session/attach.go. Used by same-host
// tooling (CLIs, tests) that don't need a browser-facing transport.
package ipcsock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/google/uuid"

	"tmuxbridge/internal/clientadapter"
)

var logger = slog.Default().With("component", "ipcsock")

// Server accepts connections on a Unix-domain socket and speaks the
// attach/invoke/detach protocol against a Broadcast.
type Server struct {
	SocketPath string
	Broadcast  clientadapter.Broadcast

	listener net.Listener
}

// ListenAndServe binds the socket (removing any stale file first) and
// accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	os.Remove(s.SocketPath)
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("ipcsock: listen on %s: %w", s.SocketPath, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("ipcsock: accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	req, err := readHandshake(conn)
	if err != nil {
		return
	}
	clientID := uuid.NewString()

	sub, snap, err := s.Broadcast.Attach(ctx, req.Session, clientID)
	if err != nil {
		sendHandshake(conn, HandshakeResponse{OK: false, Error: err.Error()})
		return
	}
	if err := sendHandshake(conn, HandshakeResponse{OK: true}); err != nil {
		s.Broadcast.Detach(req.Session, clientID)
		return
	}
	defer s.Broadcast.Detach(req.Session, clientID)
	defer sub.Cancel()

	// Deliver the synchronous attach snapshot before anything queued on
	// the subscription, matching spec §4.5's attach contract.
	if env, err := clientadapter.EncodeEvent(snap); err == nil {
		if data, err := json.Marshal(env); err == nil {
			WriteFrame(conn, FrameTypeData, data)
		}
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.readCommands(connCtx, conn, req.Session, clientID, cancel)
	s.writeEvents(connCtx, conn, sub)
}

func (s *Server) writeEvents(ctx context.Context, conn net.Conn, sub clientadapter.Subscription) {
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
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := WriteFrame(conn, FrameTypeData, data); err != nil {
				return
			}
			if env.Kind == clientadapter.EventClose {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) readCommands(ctx context.Context, conn net.Conn, session, clientID string, cancel context.CancelFunc) {
	defer cancel()
	for {
		frameType, payload, err := ReadFrame(conn)
		if err != nil {
			return
		}
		if frameType != FrameTypeControl {
			continue
		}
		var cmd clientadapter.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			continue
		}
		switch cmd.Kind {
		case clientadapter.CommandInvoke:
			s.handleInvoke(ctx, conn, session, cmd)
		case clientadapter.CommandResize:
			resizeCmd := fmt.Sprintf("resize-pane -t %s -x %d -y %d", cmd.PaneID, cmd.Cols, cmd.Rows)
			s.handleInvoke(ctx, conn, session, clientadapter.Command{ID: cmd.ID, Command: resizeCmd})
		case clientadapter.CommandDetach:
			return
		}
	}
}

func (s *Server) handleInvoke(ctx context.Context, conn net.Conn, session string, cmd clientadapter.Command) {
	out, err := s.Broadcast.Invoke(ctx, session, cmd.Command)
	result := clientadapter.InvokeResult{Kind: clientadapter.CommandInvoke, ID: cmd.ID, OK: err == nil, Output: out}
	if err != nil {
		result.Error = err.Error()
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("marshal invoke result", "error", err)
		return
	}
	WriteFrame(conn, FrameTypeControl, data)
}
