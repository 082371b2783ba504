package model

import "tmuxbridge/internal/vt"

// Snapshot is the complete per-session state sent to a client on attach,
// reconnect, or forced resnapshot after back-pressure (spec §6).
type Snapshot struct {
	Seq          uint64                `json:"seq"`
	Windows      map[string]WindowView `json:"windows"`
	Panes        map[string]PaneView   `json:"panes"`
	StatusLine   string                `json:"status_line"`
	ActiveWindow string                `json:"active_window"`
	ActivePane   string                `json:"active_pane"`
}

// WindowView is the client-facing projection of a Window.
type WindowView struct {
	Name      string   `json:"name"`
	Index     int      `json:"index"`
	PaneOrder []string `json:"pane_order"`
}

// PaneView is the client-facing projection of a Pane, including its full
// rendered grid content.
type PaneView struct {
	WindowID string `json:"window_id"`
	Cols     int    `json:"cols"`
	Rows     int    `json:"rows"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Active   bool   `json:"active"`
	Title    string `json:"title"`
	Mode     bool   `json:"mode"`
	CursorX  int    `json:"cursor_x"`
	CursorY  int    `json:"cursor_y"`
	Content  []Row  `json:"content"`
}

// Row is one line of styled cells, the unit the comparator in spec §4.3
// diffs at ("a row that differs in any cell is emitted whole").
type Row []vt.Cell

// Delta is the sparse description of changes since the previous emission
// for a session (spec §3/§6).
type Delta struct {
	Seq          uint64                 `json:"seq"`
	Windows      map[string]*WindowDelta `json:"windows,omitempty"`
	Panes        map[string]*PaneDelta   `json:"panes,omitempty"`
	ActiveWindow *string                `json:"active_window,omitempty"`
	ActivePane   *string                `json:"active_pane,omitempty"`
	StatusLine   *string                `json:"status_line,omitempty"`
}

// WindowDelta carries only the fields that changed for one window. A nil
// *WindowDelta value in Delta.Windows (represented on the wire as JSON
// null) means the window was removed.
type WindowDelta struct {
	Name      *string  `json:"name,omitempty"`
	PaneOrder []string `json:"pane_order,omitempty"`
}

// PaneDelta carries only the fields that changed for one pane. A nil
// *PaneDelta in Delta.Panes (JSON null) means the pane was removed.
type PaneDelta struct {
	Content     map[int]Row `json:"content,omitempty"` // row index -> new row
	CursorX     *int        `json:"cursor_x,omitempty"`
	CursorY     *int        `json:"cursor_y,omitempty"`
	Active      *bool       `json:"active,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Mode        *bool       `json:"mode,omitempty"`
	Cols        *int        `json:"cols,omitempty"`
	Rows        *int        `json:"rows,omitempty"`
	Paused      *bool       `json:"paused,omitempty"`
}

// ErrorEvent is the `error` client event type (spec §6): a command's
// failure surfaced to the invoking client only.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CloseEvent is the `close` client event type (spec §6): sent when a
// session transitions to Terminal or Protocol-fatal.
type CloseEvent struct {
	Reason string `json:"reason"`
}
