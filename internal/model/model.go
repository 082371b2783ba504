// Package model defines the Session Model owned by the State Aggregator:
// windows, panes, grids, and the status line, per spec §3. Entities
// reference each other by stable string ids assigned by the multiplexer,
// never by pointer, so the model is a tree of owned values (spec §9).
package model

import "tmuxbridge/internal/vt"

// Pane is one multiplexer pane: its geometry, mode flags, and Grid.
type Pane struct {
	ID          string
	WindowID    string
	Cols, Rows  int
	X, Y        int
	Active      bool
	Title       string
	BorderTitle string
	CopyMode    bool
	CopyCursorX int
	CopyCursorY int
	Command     string
	Paused      bool

	Parser *vt.Parser
}

// NewPane creates a Pane with a freshly-allocated Grid of the given size.
func NewPane(id, windowID string, cols, rows int) *Pane {
	return &Pane{
		ID:       id,
		WindowID: windowID,
		Cols:     cols,
		Rows:     rows,
		Parser:   vt.NewParser(rows, cols),
	}
}

// Resize reflows the pane's grid to the new dimensions (spec §4.2).
func (p *Pane) Resize(cols, rows int) {
	if p.Cols == cols && p.Rows == rows {
		return
	}
	p.Cols, p.Rows = cols, rows
	p.Parser.Resize(rows, cols)
}

// Window is one multiplexer window: an ordered sequence of panes with one
// active pane.
type Window struct {
	ID         string
	Name       string
	Index      int
	ActivePane string
	PaneOrder  []string // pane ids, display order
}

// Keybindings is the current prefix key and a flat map of user bindings
// (keystroke -> command). The periodic structural resync does not read key
// bindings, so a Session's Keys keep their initial empty value.
type Keybindings struct {
	Prefix   string
	Bindings map[string]string
}

// Session is the full authoritative model for one attached multiplexer
// session: windows, panes, status line, and keybindings.
type Session struct {
	Name string

	Windows    map[string]*Window
	WindowOrder []string
	ActiveWindow string

	Panes map[string]*Pane

	StatusLine string
	Keys       Keybindings
}

// NewSession creates an empty Session Model for the given session name.
func NewSession(name string) *Session {
	return &Session{
		Name:        name,
		Windows:     make(map[string]*Window),
		Panes:       make(map[string]*Pane),
		Keys:        Keybindings{Bindings: make(map[string]string)},
	}
}

// Pane looks up a pane by id, returning nil if absent.
func (s *Session) Pane(id string) *Pane { return s.Panes[id] }

// Window looks up a window by id, returning nil if absent.
func (s *Session) Window(id string) *Window { return s.Windows[id] }

// AddWindow inserts a window into the model, appending to WindowOrder if new.
func (s *Session) AddWindow(w *Window) {
	if _, exists := s.Windows[w.ID]; !exists {
		s.WindowOrder = append(s.WindowOrder, w.ID)
	}
	s.Windows[w.ID] = w
}

// RemoveWindow deletes a window and its order entry.
func (s *Session) RemoveWindow(id string) {
	delete(s.Windows, id)
	for i, wid := range s.WindowOrder {
		if wid == id {
			s.WindowOrder = append(s.WindowOrder[:i], s.WindowOrder[i+1:]...)
			break
		}
	}
}

// AddPane inserts a pane into the model and its window's pane order.
func (s *Session) AddPane(p *Pane) {
	s.Panes[p.ID] = p
	if w := s.Windows[p.WindowID]; w != nil {
		found := false
		for _, pid := range w.PaneOrder {
			if pid == p.ID {
				found = true
				break
			}
		}
		if !found {
			w.PaneOrder = append(w.PaneOrder, p.ID)
		}
	}
}

// RemovePane deletes a pane and its entry in the owning window's order.
func (s *Session) RemovePane(id string) {
	p := s.Panes[id]
	if p == nil {
		return
	}
	delete(s.Panes, id)
	if w := s.Windows[p.WindowID]; w != nil {
		for i, pid := range w.PaneOrder {
			if pid == id {
				w.PaneOrder = append(w.PaneOrder[:i], w.PaneOrder[i+1:]...)
				break
			}
		}
		if w.ActivePane == id {
			w.ActivePane = ""
		}
	}
}
