package ipcws

import (
	"fmt"

	"tmuxbridge/internal/clientadapter"
)

// resizePaneCommand translates a client's resize request into the
// equivalent invoke command (spec §6: resize is sugar over invoke).
func resizePaneCommand(cmd clientadapter.Command) string {
	return fmt.Sprintf("resize-pane -t %s -x %d -y %d", cmd.PaneID, cmd.Cols, cmd.Rows)
}
