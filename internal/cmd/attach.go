package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tmuxbridge/internal/clientadapter"
	"tmuxbridge/internal/clientadapter/ipcsock"
	"tmuxbridge/internal/model"
	"tmuxbridge/internal/socketdir"
)

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <session>",
		Short: "Attach to a running session over the embedded IPC transport (debug client, ctrl-\\ to detach)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doAttach(args[0])
		},
	}
}

// doAttach is a minimal same-host debug client: it renders the active
// pane's plain text content (no styling — full rendering is UI-layer and
// out of scope for this core) and forwards stdin to the pane via
// send-keys -H, the hex-literal form that is safe for arbitrary control
// bytes (grounded on the teacher's attach client's raw-mode + frame loop).
func doAttach(sessionName string) error {
	conn, err := net.Dial("unix", socketdir.SocketPath(sessionName))
	if err != nil {
		return fmt.Errorf("connect to %q's daemon: %w", sessionName, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(map[string]string{"session": sessionName}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read handshake response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("attach rejected: %s", resp.Error)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer func() {
		term.Restore(fd, oldState)
		os.Stdout.WriteString("\033[0m\r\n")
	}()

	var activePane string
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, payload, err := ipcsock.ReadFrame(conn)
			if err != nil {
				return
			}
			var env clientadapter.Envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				continue
			}
			switch env.Kind {
			case clientadapter.EventSnapshot:
				var snap model.Snapshot
				if json.Unmarshal(env.Payload, &snap) == nil {
					activePane = snap.ActivePane
					renderPane(snap.Panes[activePane])
				}
			case clientadapter.EventDelta:
				var delta model.Delta
				if json.Unmarshal(env.Payload, &delta) == nil && delta.ActivePane != nil {
					activePane = *delta.ActivePane
				}
			case clientadapter.EventClose:
				return
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		select {
		case <-done:
			return nil
		default:
		}
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			for _, b := range buf[:n] {
				if b == 0x1C { // ctrl-\ detaches
					return nil
				}
			}
			if activePane != "" {
				sendKeys(conn, activePane, buf[:n])
			}
		}
		if err != nil {
			return nil
		}
	}
}

func renderPane(p model.PaneView) {
	os.Stdout.WriteString("\033[2J\033[H")
	var b strings.Builder
	for _, row := range p.Content {
		for _, c := range row {
			b.WriteRune(c.Char)
		}
		b.WriteString("\r\n")
	}
	os.Stdout.WriteString(b.String())
}

func sendKeys(conn net.Conn, paneID string, data []byte) {
	cmd := sendKeysCommand(paneID, data)
	payload, _ := json.Marshal(clientadapter.Command{Kind: clientadapter.CommandInvoke, Command: cmd})
	ipcsock.WriteFrame(conn, ipcsock.FrameTypeControl, payload)
}

// sendKeysCommand builds the tmux send-keys -H hex-literal invocation for
// forwarding arbitrary stdin bytes (including control characters) safely.
func sendKeysCommand(paneID string, data []byte) string {
	fields := make([]string, len(data))
	for i, b := range data {
		fields[i] = hex.EncodeToString([]byte{b})
	}
	return fmt.Sprintf("send-keys -t %s -H %s", paneID, strings.Join(fields, " "))
}
