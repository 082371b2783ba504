package controlmode

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"tmuxbridge/internal/bridgeerr"
)

// Connection owns the multiplexer child process and the single serialized
// writer half of its stdin, correlating replies to callers in FIFO order
// the way the multiplexer itself assigns command ids (spec §4.4). This
// mirrors the pending-channel-queue design of a from-scratch tmux control
// client in the wild, adapted here to also own process lifecycle and the
// command-rewrite rules spec §4.4 requires.
type Connection struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *Reader

	session string // currently attached session name, for -t stripping

	mu           sync.Mutex
	pendingQueue []chan Reply
	closed       chan struct{}
	closeOnce    sync.Once
	closeErr     error
}

// Connect forks the multiplexer binary in control mode attached (creating
// if necessary) to sessionName, and starts the Reader pumping in the
// background (spec §4.4 connect).
func Connect(ctx context.Context, tmuxPath string, extraArgs []string, sessionName string) (*Connection, error) {
	args := append(append([]string{}, extraArgs...), "-C", "new-session", "-A", "-s", sessionName)
	cmd := exec.CommandContext(ctx, tmuxPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindTransport, "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindTransport, "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindTransport, "start multiplexer", err)
	}

	c := &Connection{
		cmd:     cmd,
		stdin:   stdin,
		session: sessionName,
		reader:  NewReader(stdout),
		closed:  make(chan struct{}),
	}
	go c.reader.Run()
	go c.pumpReplies()
	return c, nil
}

// Events exposes the Reader's notification stream for the aggregator.
func (c *Connection) Events() <-chan Event { return c.reader.Events() }

// Closed signals when the connection has torn down (child death or
// explicit disconnect); Err returns the reason.
func (c *Connection) Closed() <-chan struct{} { return c.closed }

func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Connection) pumpReplies() {
	for {
		select {
		case reply, ok := <-c.reader.Replies():
			if !ok {
				c.fail(bridgeerr.ErrConnectionLost)
				return
			}
			c.deliver(reply)
		case err, ok := <-c.reader.Errs():
			if ok {
				c.fail(err)
			} else {
				c.fail(bridgeerr.ErrConnectionLost)
			}
			return
		}
	}
}

func (c *Connection) deliver(reply Reply) {
	c.mu.Lock()
	if len(c.pendingQueue) == 0 {
		c.mu.Unlock()
		c.fail(bridgeerr.Wrap(bridgeerr.KindProtocol, "reply with no awaiter", bridgeerr.ErrUnmatchedReply))
		return
	}
	ch := c.pendingQueue[0]
	c.pendingQueue = c.pendingQueue[1:]
	c.mu.Unlock()
	ch <- reply
}

func (c *Connection) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		pending := c.pendingQueue
		c.pendingQueue = nil
		c.mu.Unlock()
		for _, ch := range pending {
			ch <- Reply{OK: false, Lines: []string{err.Error()}}
		}
		close(c.closed)
	})
}

// Send appends a single command to the serialized write stream and
// returns its reply once the matching %end/%error arrives, or an error
// if ctx is cancelled first or the connection is lost (spec §4.4 send).
func (c *Connection) Send(ctx context.Context, command string) (string, error) {
	replies, err := c.sendLines(ctx, []string{command})
	if err != nil {
		return "", err
	}
	return replies[0], nil
}

// SendBatch concatenates commands newline-separated and writes them in a
// single syscall followed by one flush (spec §4.4 send_batch: atomic).
func (c *Connection) SendBatch(ctx context.Context, commands []string) ([]string, error) {
	return c.sendLines(ctx, commands)
}

func (c *Connection) sendLines(ctx context.Context, commands []string) ([]string, error) {
	chans := make([]chan Reply, len(commands))
	rewritten := make([]string, len(commands))
	for i, cmd := range commands {
		chans[i] = make(chan Reply, 1)
		rewritten[i] = c.rewrite(cmd)
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, bridgeerr.ErrConnectionLost
	default:
	}
	c.pendingQueue = append(c.pendingQueue, chans...)
	_, writeErr := fmt.Fprintf(c.stdin, "%s\n", strings.Join(rewritten, "\n"))
	c.mu.Unlock()
	if writeErr != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindTransport, "write to multiplexer stdin", writeErr)
	}

	results := make([]string, len(commands))
	for i, ch := range chans {
		select {
		case reply := <-ch:
			if !reply.OK {
				return nil, &bridgeerr.CommandError{CmdID: reply.CmdID, Text: strings.Join(reply.Lines, "\n")}
			}
			results[i] = strings.Join(reply.Lines, "\n")
		case <-ctx.Done():
			return nil, bridgeerr.Wrap(bridgeerr.KindTimeout, "invoke timed out", ctx.Err())
		case <-c.closed:
			return nil, bridgeerr.ErrConnectionLost
		}
	}
	return results, nil
}

// Disconnect sends a graceful detach-client, waits up to budget for the
// connection to close, and kills the process on expiry (spec §4.4).
func (c *Connection) Disconnect(budget time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	_, _ = c.Send(ctx, "detach-client")

	select {
	case <-c.closed:
	case <-time.After(budget):
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	return nil
}

// sessionTargetPattern only matches when the session name is the whole
// target token: it must be followed by a window/pane suffix ([:.]...) or
// by a word boundary (whitespace or end-of-string), never by more bare
// target characters. Without that boundary, an attached session whose
// name is a literal prefix of another target (e.g. "my" vs "mysession")
// would have its "-t " stripped from a command aimed at the other session.
var sessionTargetPattern = func(session string) *regexp.Regexp {
	return regexp.MustCompile(`-t\s+` + regexp.QuoteMeta(session) + `([:.][^\s]*)?(\s|$)`)
}

// rewrite applies the deterministic command rewrites spec §4.4 requires
// to avoid a host-process crash: stripping a redundant session-target
// prefix (window/pane suffixes preserved) and replacing new-window with
// the equivalent split-window+break-pane pair.
func (c *Connection) rewrite(cmd string) string {
	cmd = stripSessionTarget(cmd, c.session)
	cmd = rewriteNewWindow(cmd)
	return cmd
}

func stripSessionTarget(cmd, session string) string {
	if session == "" {
		return cmd
	}
	re := sessionTargetPattern(session)
	return re.ReplaceAllStringFunc(cmd, func(match string) string {
		sub := re.FindStringSubmatch(match)
		suffix, boundary := sub[1], sub[2]
		if suffix == "" {
			return boundary
		}
		return "-t " + suffix + boundary
	})
}

var newWindowVerb = regexp.MustCompile(`^(\s*)new-window\b`)

func rewriteNewWindow(cmd string) string {
	if !newWindowVerb.MatchString(cmd) {
		return cmd
	}
	rest := newWindowVerb.ReplaceAllString(cmd, "${1}split-window")
	return rest + ` \; break-pane`
}
