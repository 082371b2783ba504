package registry

import (
	"fmt"

	"github.com/gofrs/flock"

	"tmuxbridge/internal/socketdir"
)

// SessionLock enforces "at most one Monitor per Session key at any time"
// (spec §3) across process boundaries: a second bridge process started
// against the same session name fails to acquire the lock instead of
// racing the first one's control-mode connection.
type SessionLock struct {
	fl *flock.Flock
}

// AcquireSessionLock tries to take an exclusive, non-blocking lock on the
// session's lock file. It returns a plain error when another process
// already holds it; Monitor.start wraps that as KindLifecycleRace.
func AcquireSessionLock(sessionName string) (*SessionLock, error) {
	fl := flock.New(socketdir.LockPath(sessionName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock for %q: %w", sessionName, err)
	}
	if !ok {
		return nil, fmt.Errorf("session %q is already monitored by another process", sessionName)
	}
	return &SessionLock{fl: fl}, nil
}

// Release drops the lock. Safe to call multiple times.
func (l *SessionLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
