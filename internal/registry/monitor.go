package registry

import (
	"context"
	"sync"
	"time"

	"tmuxbridge/internal/aggregator"
	"tmuxbridge/internal/bridgeerr"
	"tmuxbridge/internal/controlmode"
	"tmuxbridge/internal/model"
)

// monitorState is the per-session lifecycle state driving the grace-period
// teardown (spec §4.5): absent -> initializing -> live -> draining -> absent.
type monitorState int

const (
	stateInitializing monitorState = iota
	stateLive
	stateDraining
	stateGone
)

// clientSlot is one attached client's bounded delta queue plus the
// lagging flag spec §5 backpressure recovery relies on: once a client's
// queue fills, we stop trying to keep it incrementally current and wait
// for the next Full snapshot to resync it in one shot, rather than
// blocking the whole Monitor on a slow reader.
type clientSlot struct {
	sub     *Subscription
	lagging bool
}

// Monitor owns one session's control-mode Connection, its Aggregator, and
// the fan-out to every attached client (spec §4.5). Exactly one Monitor
// exists per live session name, enforced both in-process by the Registry's
// map and cross-process by SessionLock.
type Monitor struct {
	sessionName string
	connector   Connector
	grace       time.Duration

	mu       sync.Mutex
	state    monitorState
	clients  map[string]*clientSlot
	lastFull model.Snapshot
	lock     *SessionLock
	conn     *controlmode.Connection
	cancel   context.CancelFunc
	graceT   *time.Timer
}

func newMonitor(sessionName string, connector Connector, grace time.Duration) *Monitor {
	return &Monitor{
		sessionName: sessionName,
		connector:   connector,
		grace:       grace,
		state:       stateInitializing,
		clients:     make(map[string]*clientSlot),
	}
}

// start acquires the session lock, opens the control-mode connection, and
// launches the Aggregator's actor loop (spec §4.5 attach, first client).
func (m *Monitor) start(ctx context.Context) error {
	lock, err := AcquireSessionLock(m.sessionName)
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.KindLifecycleRace, "acquire session lock", err)
	}

	conn, err := m.connector.Connect(ctx, m.sessionName)
	if err != nil {
		lock.Release()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.lock = lock
	m.conn = conn
	m.cancel = cancel
	m.state = stateLive
	m.mu.Unlock()

	agg := aggregator.New(m.sessionName, conn, conn.Events(), m, 16*time.Millisecond, 500*time.Millisecond)
	go func() {
		agg.Run(runCtx)
		m.teardown()
	}()
	return nil
}

// addClient registers a new Subscription and cancels any armed grace
// timer (spec §4.5: "a re-attach within the grace period cancels teardown").
func (m *Monitor) addClient(clientID string, queueLen int) *Subscription {
	sub := &Subscription{
		ClientID: clientID,
		ch:       make(chan any, queueLen),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.graceT != nil {
		m.graceT.Stop()
		m.graceT = nil
	}
	if m.state == stateDraining {
		m.state = stateLive
	}
	m.clients[clientID] = &clientSlot{sub: sub}
	full := m.lastFull
	m.mu.Unlock()

	if full.Windows != nil || full.Panes != nil {
		select {
		case sub.ch <- full:
		default:
		}
	}
	return sub
}

// removeClient drops a client; once none remain, arms the grace timer
// (spec §4.5 detach / grace period). onExpire runs after the grace period
// elapses with no re-attach, tearing down the Connection and Aggregator.
func (m *Monitor) removeClient(clientID string, onExpire func()) {
	m.mu.Lock()
	delete(m.clients, clientID)
	empty := len(m.clients) == 0
	if empty && m.state == stateLive {
		m.state = stateDraining
		m.graceT = time.AfterFunc(m.grace, func() {
			m.mu.Lock()
			stillEmpty := len(m.clients) == 0 && m.state == stateDraining
			m.mu.Unlock()
			if !stillEmpty {
				return
			}
			if m.cancel != nil {
				m.cancel()
			}
			onExpire()
		})
	}
	m.mu.Unlock()
}

func (m *Monitor) teardown() {
	m.mu.Lock()
	m.state = stateGone
	conn := m.conn
	lock := m.lock
	m.mu.Unlock()

	if conn != nil {
		conn.Disconnect(2 * time.Second)
	}
	lock.Release()
}

func (m *Monitor) invoke(ctx context.Context, command string) (string, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return "", bridgeerr.ErrNoMonitor
	}
	return conn.Send(ctx, command)
}

func (m *Monitor) currentSnapshot() model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFull
}

// Status is the minimal in-process health surface spec §6 adds: state,
// client count, and LastSeq, the sequence number of the most recent Full
// snapshot (deltas emitted after that snapshot do not advance it).
type Status struct {
	SessionName string `json:"session_name"`
	State       string `json:"state"`
	ClientCount int    `json:"client_count"`
	LastSeq     uint64 `json:"last_seq"`
}

func (s monitorState) String() string {
	switch s {
	case stateInitializing:
		return "initializing"
	case stateLive:
		return "live"
	case stateDraining:
		return "draining"
	case stateGone:
		return "gone"
	default:
		return "unknown"
	}
}

func (m *Monitor) status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		SessionName: m.sessionName,
		State:       m.state.String(),
		ClientCount: len(m.clients),
		LastSeq:     m.lastFull.Seq,
	}
}

// Snapshot implements aggregator.Broadcast: cache the Full snapshot and
// deliver it to every attached client, clearing their lagging flag (spec
// §5 backpressure recovery — a Full emission is the resync point).
func (m *Monitor) Snapshot(_ string, snap model.Snapshot) {
	m.mu.Lock()
	m.lastFull = snap
	slots := make([]*clientSlot, 0, len(m.clients))
	for _, s := range m.clients {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, slot := range slots {
		select {
		case slot.sub.ch <- snap:
			slot.lagging = false
		default:
			// Still can't keep up; leave lagging set so a future Delta
			// is skipped until the next Full lands.
			slot.lagging = true
		}
	}
}

// Delta implements aggregator.Broadcast: fan the sparse delta out to every
// attached client, dropping it (and marking the client lagging) for any
// client whose queue is full rather than blocking the aggregator (spec §5).
func (m *Monitor) Delta(_ string, d model.Delta) {
	m.mu.Lock()
	slots := make([]*clientSlot, 0, len(m.clients))
	for _, s := range m.clients {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, slot := range slots {
		if slot.lagging {
			continue
		}
		select {
		case slot.sub.ch <- d:
		default:
			slot.lagging = true
		}
	}
}

// Close implements aggregator.Broadcast: notify every attached client that
// the session has gone away (spec §4.3 Terminal state).
func (m *Monitor) Close(_ string, reason string) {
	m.mu.Lock()
	slots := make([]*clientSlot, 0, len(m.clients))
	for _, s := range m.clients {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, slot := range slots {
		select {
		case slot.sub.ch <- model.CloseEvent{Reason: reason}:
		default:
		}
	}
}
