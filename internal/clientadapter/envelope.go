package clientadapter

import (
	"encoding/json"
	"fmt"

	"tmuxbridge/internal/model"
)

// EventKind tags a server->client wire message (spec §6 client event stream).
type EventKind string

const (
	EventSnapshot EventKind = "snapshot"
	EventDelta    EventKind = "delta"
	EventError    EventKind = "error"
	EventClose    EventKind = "close"
)

// Envelope is the outer JSON object both transports wrap every outbound
// message in, so a client only ever needs one switch on `kind` regardless
// of transport.
type Envelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent boxes one value taken off a Subscription's channel into an
// Envelope ready for JSON marshaling.
func EncodeEvent(v any) (Envelope, error) {
	var kind EventKind
	switch v.(type) {
	case model.Snapshot:
		kind = EventSnapshot
	case model.Delta:
		kind = EventDelta
	case model.ErrorEvent:
		kind = EventError
	case model.CloseEvent:
		kind = EventClose
	default:
		return Envelope{}, fmt.Errorf("clientadapter: unrecognized event type %T", v)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}

// CommandKind tags a client->server wire message.
type CommandKind string

const (
	CommandAttach CommandKind = "attach"
	CommandInvoke CommandKind = "invoke"
	CommandResize CommandKind = "resize"
	CommandDetach CommandKind = "detach"
)

// Command is the inbound message shape for both transports: attach opens
// a subscription, invoke runs a command, resize adjusts a pane's PTY size
// via invoke's underlying resize-pane command, detach ends this client's
// connection (the session itself stays up for other clients).
type Command struct {
	Kind    CommandKind `json:"kind"`
	ID      string      `json:"id,omitempty"` // correlates invoke replies
	Session string      `json:"session,omitempty"`
	Command string      `json:"command,omitempty"`
	PaneID  string      `json:"pane_id,omitempty"`
	Cols    int         `json:"cols,omitempty"`
	Rows    int         `json:"rows,omitempty"`
}

// InvokeResult is the reply to a Command{Kind: CommandInvoke}.
type InvokeResult struct {
	Kind   CommandKind `json:"kind"`
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Output string      `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}
