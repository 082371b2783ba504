// Package bridgeerr defines the typed error taxonomy shared by every
// layer of the bridge (spec §7): protocol violations, per-command
// failures, transport loss, back-pressure, and caller-facing lookup and
// timeout errors. Callers type-assert or use errors.Is against the
// sentinels below rather than matching error strings.
package bridgeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for client-facing reporting (the `kind` field
// of the `error` event type in spec §6).
type Kind string

const (
	KindProtocol      Kind = "protocol"
	KindCommandError  Kind = "command_error"
	KindTransport     Kind = "transport"
	KindBackpressure  Kind = "backpressure"
	KindNoMonitor     Kind = "no_monitor"
	KindTimeout       Kind = "timeout"
	KindLifecycleRace Kind = "lifecycle_race"
)

// Sentinels for errors.Is matching across package boundaries.
var (
	// ErrNoMonitor is returned by invoke when no monitor exists for a
	// session (unknown or past-grace-draining).
	ErrNoMonitor = errors.New("bridgeerr: no monitor for session")
	// ErrTimeout is returned when a caller-supplied invocation deadline
	// elapses before a reply arrives.
	ErrTimeout = errors.New("bridgeerr: invocation timed out")
	// ErrConnectionLost is returned to all outstanding futures when the
	// child process dies unexpectedly.
	ErrConnectionLost = errors.New("bridgeerr: connection to multiplexer lost")
	// ErrUnmatchedReply is a Protocol-fatal error: a %end/%error with no
	// registered awaiter for its command id.
	ErrUnmatchedReply = errors.New("bridgeerr: reply id has no awaiter")
	// ErrDuplicateBegin is a Protocol-fatal error: a %begin arrived before
	// the prior block's %end/%error was observed.
	ErrDuplicateBegin = errors.New("bridgeerr: %begin with no prior %end/%error")
)

// Error wraps an underlying cause with a Kind for client surfacing,
// per spec §7's propagation policy.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a typed Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a typed Error wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// CommandError reports the multiplexer's own %error reply text verbatim,
// surfaced only to the invoking caller (spec §7: CommandError taxonomy).
type CommandError struct {
	CmdID int
	Text  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d failed: %s", e.CmdID, e.Text)
}

// ErrorKind implements the Kind-carrying interface so callers can classify a
// CommandError alongside *Error values.
func (e *CommandError) ErrorKind() Kind { return KindCommandError }

// KindOf extracts the Kind from err, defaulting to KindTransport for
// errors with no classification (an unexpected/unclassified failure is
// treated as fatal-to-the-monitor, the safest default per spec §7).
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrNoMonitor):
		return KindNoMonitor
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConnectionLost):
		return KindTransport
	case errors.Is(err, ErrUnmatchedReply), errors.Is(err, ErrDuplicateBegin):
		return KindProtocol
	default:
		return KindTransport
	}
}
