package controlmode

// EventKind classifies an asynchronous notification line (spec §4.1).
type EventKind string

const (
	EventOutput               EventKind = "output"
	EventWindowAdd            EventKind = "window-add"
	EventWindowClose          EventKind = "window-close"
	EventWindowRenamed        EventKind = "window-renamed"
	EventSessionWindowChanged EventKind = "session-window-changed"
	EventLayoutChange         EventKind = "layout-change"
	EventClientSessionChanged EventKind = "client-session-changed"
	EventPaneModeChanged      EventKind = "pane-mode-changed"
	EventExit                 EventKind = "exit"
	EventPause                EventKind = "pause"
	EventContinue             EventKind = "continue"
	EventUnknown              EventKind = "unknown"
)

// Event is a single dispatched notification, in arrival order (spec §4.1
// ordering guarantee).
type Event struct {
	Kind EventKind
	// PaneID is set for %output, %pause, %continue, %pane-mode-changed.
	PaneID string
	// Data holds the already-unescaped payload of an %output event.
	Data []byte
	// Fields holds the remaining whitespace-split tokens of the
	// notification line, for kinds this package does not parse further
	// (e.g. %window-add's window id, %layout-change's layout string).
	Fields []string
	// Raw is the original notification line, unparsed.
	Raw string
}

// Reply is the collected payload of one %begin/%end or %begin/%error block.
type Reply struct {
	CmdID int
	OK    bool
	Lines []string
}
