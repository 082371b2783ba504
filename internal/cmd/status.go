package cmd

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"tmuxbridge/internal/clientadapter"
	"tmuxbridge/internal/clientadapter/ipcsock"
	"tmuxbridge/internal/model"
	"tmuxbridge/internal/socketdir"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session>",
		Short: "Print a session's current snapshot summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doStatus(args[0])
		},
	}
}

func doStatus(sessionName string) error {
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

	_, payload, err := ipcsock.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var env clientadapter.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	if env.Kind != clientadapter.EventSnapshot {
		fmt.Println(string(env.Payload))
		return nil
	}
	var snap model.Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	fmt.Printf("%s %s  seq=%d  windows=%d  panes=%d  active=%s\n",
		stateDot("live"), bold(sessionName), snap.Seq,
		len(snap.Windows), len(snap.Panes), accent(snap.ActivePane))
	fmt.Println(string(env.Payload))
	return nil
}
