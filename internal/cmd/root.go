// Package cmd wires the bridge core into a runnable binary: a serve
// command that starts the daemon for one session, plus status and attach
// commands for same-host debugging. The core library (internal/aggregator,
// internal/registry, internal/controlmode, internal/clientadapter) has no
// dependency on this package or on cobra.
package cmd

import (
	"github.com/spf13/cobra"

	"tmuxbridge/internal/version"
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tmuxbridged",
		Short:   "Control-mode bridge and state aggregator",
		Long:    "tmuxbridged attaches to a multiplexer session's control-mode interface, maintains a live session model, and serves it to clients over Unix-socket and WebSocket transports.",
		Version: version.Version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newAttachCmd(),
	)

	return rootCmd
}
