// Package clientadapter defines the transport-agnostic capability set a
// remote client is given (spec §9's "dynamic dispatch" point): subscribe
// to a session's event stream, and invoke a command against it. Two
// concrete transports — ipcsock (Unix-domain-socket, same-host) and ipcws
// (WebSocket, browser-reachable) — each implement a thin protocol on top
// of exactly this interface; neither the aggregator nor the registry
// imports either transport package.
package clientadapter

import (
	"context"

	"tmuxbridge/internal/model"
	"tmuxbridge/internal/registry"
)

// Subscription is a client's inbound event queue: Snapshot/Delta values
// and a terminal model.CloseEvent, boxed as `any` so this package stays
// independent of any one wire encoding.
type Subscription interface {
	Recv() <-chan any
	Cancel()
}

// Broadcast is the capability a transport holds to drive a session on a
// client's behalf. Implemented by *registry.Registry.
type Broadcast interface {
	Attach(ctx context.Context, sessionName, clientID string) (Subscription, model.Snapshot, error)
	Invoke(ctx context.Context, sessionName, command string) (string, error)
	Detach(sessionName, clientID string)
	Status(sessionName string) (registry.Status, bool)
	StatusAll() []registry.Status
}

// Adapter wraps a *registry.Registry to satisfy Broadcast — registry's
// Attach returns a *registry.Subscription, which already has the
// Recv/Cancel method set Subscription requires, so no translation is
// needed beyond the interface boxing the compiler does automatically.
type Adapter struct {
	Reg *registry.Registry
}

// New wraps reg as a Broadcast for transport packages to depend on.
func New(reg *registry.Registry) *Adapter {
	return &Adapter{Reg: reg}
}

func (a *Adapter) Attach(ctx context.Context, sessionName, clientID string) (Subscription, model.Snapshot, error) {
	return a.Reg.Attach(ctx, sessionName, clientID)
}

func (a *Adapter) Invoke(ctx context.Context, sessionName, command string) (string, error) {
	return a.Reg.Invoke(ctx, sessionName, command)
}

func (a *Adapter) Detach(sessionName, clientID string) {
	a.Reg.Detach(sessionName, clientID)
}

func (a *Adapter) Status(sessionName string) (registry.Status, bool) {
	return a.Reg.Status(sessionName)
}

func (a *Adapter) StatusAll() []registry.Status {
	return a.Reg.StatusAll()
}
