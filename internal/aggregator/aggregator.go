// Package aggregator implements the State Aggregator (spec §4.3): it
// owns the authoritative Session Model, classifies incoming control-mode
// events into ChangeType, debounces PaneOutput bursts onto a single
// per-session timer, periodically resyncs structural state, and computes
// sparse deltas against a shadow of the last-emitted model.
package aggregator

import (
	"context"
	"strings"
	"sync"
	"time"

	"tmuxbridge/internal/controlmode"
	"tmuxbridge/internal/model"
)

// ChangeType classifies the kind of change a control-mode event produced,
// determining its emission policy (spec §4.3 table).
type ChangeType int

const (
	ChangeNone ChangeType = iota
	ChangePaneOutput
	ChangePaneLayout
	ChangeWindow
	ChangePaneFocus
	ChangeSession
	ChangeFull
)

// State is the aggregator-level lifecycle state (spec §4.3 States).
type State int

const (
	StateIdle State = iota
	StateAttached
	StatePausedByBackpressure
	StateTerminal
)

// Broadcast is the in-process capability the aggregator emits deltas and
// lifecycle events through; it is implemented by the session registry and
// never touched directly by concrete transports (spec §9 Dynamic dispatch).
type Broadcast interface {
	Snapshot(sessionName string, snap model.Snapshot)
	Delta(sessionName string, delta model.Delta)
	Close(sessionName string, reason string)
}

// Sender is the narrow slice of Connection the aggregator needs to issue
// the periodic batched resync command.
type Sender interface {
	Send(ctx context.Context, command string) (string, error)
}

// Aggregator runs as a single-threaded actor per spec §5: all Session
// Model mutations happen on its Run goroutine, so the model itself needs
// no internal locking.
type Aggregator struct {
	sessionName string
	conn        Sender
	events      <-chan controlmode.Event
	broadcast   Broadcast
	debounce    time.Duration
	resync      time.Duration

	model  *model.Session
	shadow model.Snapshot // last-emitted projection; diffed against on every emission
	seq    uint64

	state      State
	dirtyPanes map[string]bool
	pausedPane map[string]bool

	mu sync.Mutex // guards State() reads from other goroutines
}

// New constructs an Aggregator for sessionName. Call Run in its own
// goroutine once the initial attach command has been issued.
func New(sessionName string, conn Sender, events <-chan controlmode.Event, broadcast Broadcast, debounce, resync time.Duration) *Aggregator {
	return &Aggregator{
		sessionName: sessionName,
		conn:        conn,
		events:      events,
		broadcast:   broadcast,
		debounce:    debounce,
		resync:      resync,
		model:       model.NewSession(sessionName),
		dirtyPanes:  make(map[string]bool),
		pausedPane:  make(map[string]bool),
		state:       StateIdle,
	}
}

// State returns the current lifecycle state, safe for concurrent callers.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Aggregator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Run is the aggregator's actor loop (spec §5 suspension point (c)): it
// waits on the next reader event, the debounce deadline, or the periodic
// resync tick, applying each in arrival order.
func (a *Aggregator) Run(ctx context.Context) {
	a.setState(StateAttached)
	a.emitFull()

	var debounceTimer *time.Timer
	var debounceC <-chan time.Time
	resyncTicker := time.NewTicker(a.resync)
	defer resyncTicker.Stop()

	for {
		select {
		case ev, ok := <-a.events:
			if !ok {
				a.terminal("connection closed")
				return
			}
			ct := a.apply(ev)
			switch ct {
			case ChangePaneOutput:
				if debounceTimer == nil {
					debounceTimer = time.NewTimer(a.debounce)
					debounceC = debounceTimer.C
				}
			case ChangePaneLayout, ChangeWindow, ChangePaneFocus, ChangeSession:
				// Non-output changes bypass the timer and flush any
				// pending output emit alongside them (spec §4.3).
				if debounceTimer != nil {
					debounceTimer.Stop()
					debounceTimer = nil
					debounceC = nil
				}
				a.emitDelta()
			case ChangeFull:
				if debounceTimer != nil {
					debounceTimer.Stop()
					debounceTimer = nil
					debounceC = nil
				}
				a.emitFull()
			}
			if a.State() == StateTerminal {
				return
			}

		case <-debounceC:
			debounceTimer = nil
			debounceC = nil
			a.emitDelta()

		case <-resyncTicker.C:
			a.resyncStructural(ctx)

		case <-ctx.Done():
			return
		}
	}
}

// apply updates the Session Model for one event and classifies the change.
func (a *Aggregator) apply(ev controlmode.Event) ChangeType {
	switch ev.Kind {
	case controlmode.EventOutput:
		if len(ev.Data) == 0 {
			return ChangeNone // boundary behavior: zero-byte output is a no-op (spec §8.9)
		}
		if a.pausedPane[ev.PaneID] {
			return ChangeNone
		}
		p := a.model.Pane(ev.PaneID)
		if p == nil {
			return ChangeNone
		}
		p.Parser.Feed(ev.Data)
		a.dirtyPanes[ev.PaneID] = true
		return ChangePaneOutput

	case controlmode.EventLayoutChange:
		return ChangePaneLayout

	case controlmode.EventWindowAdd, controlmode.EventWindowClose,
		controlmode.EventWindowRenamed, controlmode.EventSessionWindowChanged:
		return ChangeWindow

	case controlmode.EventPaneModeChanged:
		if p := a.model.Pane(ev.PaneID); p != nil {
			p.CopyMode = !p.CopyMode
		}
		return ChangePaneFocus

	case controlmode.EventClientSessionChanged:
		return ChangeSession

	case controlmode.EventPause:
		a.pausedPane[ev.PaneID] = true
		a.setState(StatePausedByBackpressure)
		return ChangePaneFocus

	case controlmode.EventContinue:
		delete(a.pausedPane, ev.PaneID)
		if len(a.pausedPane) == 0 {
			a.setState(StateAttached)
		}
		return ChangePaneFocus

	case controlmode.EventExit:
		a.terminal("multiplexer exited")
		return ChangeNone

	default:
		return ChangeNone
	}
}

func (a *Aggregator) terminal(reason string) {
	a.setState(StateTerminal)
	a.broadcast.Close(a.sessionName, reason)
}

// emitFull emits a complete snapshot and resets the shadow to match it
// (spec §4.3 Full emission policy).
func (a *Aggregator) emitFull() {
	a.seq++
	snap := a.model.ToSnapshot(a.seq)
	a.broadcast.Snapshot(a.sessionName, snap)
	a.shadow = snap
	a.dirtyPanes = make(map[string]bool)
}

// emitDelta computes the sparse diff against the shadow and emits it,
// then updates the shadow to match what was sent (spec §3 Shadow Model
// invariant, §4.3 delta computation).
func (a *Aggregator) emitDelta() {
	current := a.model.ToSnapshot(a.shadow.Seq)
	delta := diff(a.shadow, current, a.dirtyPanes)
	if delta == nil {
		return
	}
	a.seq++
	delta.Seq = a.seq
	a.broadcast.Delta(a.sessionName, *delta)
	current.Seq = a.seq
	a.shadow = current
	a.dirtyPanes = make(map[string]bool)
}

// resyncStructural issues the periodic batched structural-state read
// (spec §4.3 Periodic resync): one write, one flush, authoritative for
// attributes not pushed as notifications.
func (a *Aggregator) resyncStructural(ctx context.Context) {
	cmds := []string{
		"list-windows -F '#{window_id} #{window_index} #{window_name} #{window_active}'",
		"list-panes -a -F '#{pane_id} #{window_id} #{pane_width} #{pane_height} #{pane_left} #{pane_top} #{pane_active} #{pane_title} #{pane_current_command} #{pane_in_mode}'",
		"display-message -p '#{status-left}#{status-right}'",
	}
	out, err := a.conn.Send(ctx, strings.Join(cmds, " ; "))
	if err != nil {
		return
	}
	applyStructuralResync(a.model, out)
	a.emitDelta()
}
