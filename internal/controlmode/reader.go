// Package controlmode implements the Framed Protocol Reader and the
// Control-Mode Connection/Writer (spec §4.1, §4.4): parsing the
// multiplexer's line-oriented control-mode stream into typed events and
// replies, and serializing commands back to its stdin with the rewrite
// rules that avoid a known host-process crash.
package controlmode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tmuxbridge/internal/bridgeerr"
)

// Reader consumes the multiplexer's control-mode byte stream and splits it
// into %begin/%end/%error-delimited command blocks and single-line
// notifications (spec §4.1). It never reorders: notifications interleaved
// inside a command block are dispatched to Events as soon as they are
// read, concurrently with collecting that block's reply payload.
type Reader struct {
	scanner *bufio.Scanner
	events  chan Event
	replies chan Reply
	errs    chan error

	pending   bool
	pendingID int
	lines     []string
}

// NewReader wraps r, sizing the scanner's buffer generously since a
// single %output line can carry a full screen's worth of escaped bytes.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{
		scanner: sc,
		events:  make(chan Event, 256),
		replies: make(chan Reply, 32),
		errs:    make(chan error, 1),
	}
}

// Events returns the channel of dispatched notifications, in arrival order.
func (r *Reader) Events() <-chan Event { return r.events }

// Replies returns the channel of completed command-block replies.
func (r *Reader) Replies() <-chan Reply { return r.replies }

// Errs returns the channel a fatal protocol/transport error is sent on.
// After an error, Run returns and both Events and Replies are closed.
func (r *Reader) Errs() <-chan error { return r.errs }

// Run reads lines until EOF or a fatal error, dispatching to Events and
// Replies as described above. It is meant to be run in its own goroutine
// (spec §5: "one logical reader task").
func (r *Reader) Run() {
	defer close(r.events)
	defer close(r.replies)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if err := r.handleLine(line); err != nil {
			r.errs <- err
			return
		}
	}
	if err := r.scanner.Err(); err != nil {
		r.errs <- bridgeerr.Wrap(bridgeerr.KindTransport, "reading control-mode stream", err)
		return
	}
	// Clean EOF: synthesize the %exit the spec requires (§4.1 error conditions).
	r.events <- Event{Kind: EventExit, Raw: "%exit"}
}

func (r *Reader) handleLine(line string) error {
	if !strings.HasPrefix(line, "%") {
		// Payload line inside an open command block. Outside one, a
		// non-notification, non-begin line is a protocol violation, but
		// we tolerate it as an ignorable blank/noise line per permissive
		// parsing of line-oriented protocols; only collect when pending.
		if r.pending {
			r.lines = append(r.lines, line)
		}
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	verb := fields[0]

	switch verb {
	case "%begin":
		if r.pending {
			return bridgeerr.Wrap(bridgeerr.KindProtocol, line, bridgeerr.ErrDuplicateBegin)
		}
		id, err := parseCmdID(fields)
		if err != nil {
			return bridgeerr.Wrap(bridgeerr.KindProtocol, line, err)
		}
		r.pending = true
		r.pendingID = id
		r.lines = nil
		return nil

	case "%end", "%error":
		if !r.pending {
			return bridgeerr.Wrap(bridgeerr.KindProtocol, line, bridgeerr.ErrUnmatchedReply)
		}
		id, err := parseCmdID(fields)
		if err != nil {
			return bridgeerr.Wrap(bridgeerr.KindProtocol, line, err)
		}
		if id != r.pendingID {
			return bridgeerr.Wrap(bridgeerr.KindProtocol, line, bridgeerr.ErrUnmatchedReply)
		}
		r.replies <- Reply{CmdID: id, OK: verb == "%end", Lines: r.lines}
		r.pending = false
		r.lines = nil
		return nil

	case "%output":
		if len(fields) < 2 {
			return nil
		}
		paneID := fields[1]
		rest := afterNthField(line, 2)
		r.events <- Event{Kind: EventOutput, PaneID: paneID, Data: unescapeOutput(rest)}
		return nil

	case "%pause", "%continue":
		kind := EventPause
		if verb == "%continue" {
			kind = EventContinue
		}
		paneID := ""
		if len(fields) > 1 {
			paneID = fields[1]
		}
		r.events <- Event{Kind: kind, PaneID: paneID, Fields: fields[1:], Raw: line}
		return nil

	case "%pane-mode-changed":
		paneID := ""
		if len(fields) > 1 {
			paneID = fields[1]
		}
		r.events <- Event{Kind: EventPaneModeChanged, PaneID: paneID, Fields: fields[1:], Raw: line}
		return nil

	case "%window-add":
		r.events <- Event{Kind: EventWindowAdd, Fields: fields[1:], Raw: line}
		return nil
	case "%window-close":
		r.events <- Event{Kind: EventWindowClose, Fields: fields[1:], Raw: line}
		return nil
	case "%window-renamed":
		r.events <- Event{Kind: EventWindowRenamed, Fields: fields[1:], Raw: line}
		return nil
	case "%session-window-changed":
		r.events <- Event{Kind: EventSessionWindowChanged, Fields: fields[1:], Raw: line}
		return nil
	case "%layout-change":
		r.events <- Event{Kind: EventLayoutChange, Fields: fields[1:], Raw: line}
		return nil
	case "%client-session-changed":
		r.events <- Event{Kind: EventClientSessionChanged, Fields: fields[1:], Raw: line}
		return nil
	case "%exit":
		r.events <- Event{Kind: EventExit, Fields: fields[1:], Raw: line}
		return nil
	default:
		r.events <- Event{Kind: EventUnknown, Fields: fields[1:], Raw: line}
		return nil
	}
}

func parseCmdID(fields []string) (int, error) {
	// %begin/%end/%error <time> <cmd-id> <flags>
	if len(fields) < 3 {
		return 0, fmt.Errorf("malformed line: too few fields")
	}
	return strconv.Atoi(fields[2])
}

// afterNthField returns the remainder of line after skipping n
// whitespace-separated fields (used to recover %output's raw payload,
// which may itself contain spaces).
func afterNthField(line string, n int) string {
	i := 0
	for ; n > 0 && i < len(line); n-- {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		for i < len(line) && line[i] != ' ' {
			i++
		}
	}
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return line[i:]
}

// unescapeOutput decodes a %output payload per the multiplexer's escaping
// convention (spec §6): "\\" for a literal backslash, "\ooo" octal escapes
// for arbitrary bytes, everything else passed through unchanged.
func unescapeOutput(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		switch next := s[i+1]; {
		case next == '\\':
			out = append(out, '\\')
			i++
		case isOctalDigit(next) && isOctalTriplet(s, i+1):
			v := (int(s[i+1]-'0') << 6) | (int(s[i+2]-'0') << 3) | int(s[i+3]-'0')
			out = append(out, byte(v))
			i += 3
		default:
			out = append(out, s[i])
		}
	}
	return out
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }

func isOctalTriplet(s string, start int) bool {
	if start+2 >= len(s) {
		return false
	}
	return isOctalDigit(s[start]) && isOctalDigit(s[start+1]) && isOctalDigit(s[start+2])
}
