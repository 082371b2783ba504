package model

// ToSnapshot projects the authoritative Session into the wire Snapshot
// format, used for the initial attach snapshot and for forced
// resnapshots after back-pressure (spec §4.5, §5).
func (s *Session) ToSnapshot(seq uint64) Snapshot {
	snap := Snapshot{
		Seq:          seq,
		Windows:      make(map[string]WindowView, len(s.Windows)),
		Panes:        make(map[string]PaneView, len(s.Panes)),
		StatusLine:   s.StatusLine,
		ActiveWindow: s.ActiveWindow,
	}
	for id, w := range s.Windows {
		snap.Windows[id] = WindowView{
			Name:      w.Name,
			Index:     w.Index,
			PaneOrder: append([]string(nil), w.PaneOrder...),
		}
		if w.ID == s.ActiveWindow {
			snap.ActivePane = w.ActivePane
		}
	}
	for id, p := range s.Panes {
		g := p.Parser.Snapshot()
		content := make([]Row, g.Rows)
		for r := 0; r < g.Rows; r++ {
			content[r] = append(Row(nil), g.Row(r)...)
		}
		snap.Panes[id] = PaneView{
			WindowID: p.WindowID,
			Cols:     p.Cols,
			Rows:     p.Rows,
			X:        p.X,
			Y:        p.Y,
			Active:   p.Active,
			Title:    p.Title,
			Mode:     p.CopyMode,
			CursorX:  g.CursorCol,
			CursorY:  g.CursorRow,
			Content:  content,
		}
	}
	return snap
}
