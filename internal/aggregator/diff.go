package aggregator

import (
	"reflect"

	"tmuxbridge/internal/model"
)

// diff computes the sparse Delta between the shadow (last-emitted) and
// current snapshots (spec §4.3 delta computation): windows/panes absent
// in current are emitted as removed (nil), absent in shadow as full
// additions, and otherwise only the fields that differ. Returns nil if
// nothing changed (spec §8.9: no dirty flag, no emission).
func diff(shadow, current model.Snapshot, dirty map[string]bool) *model.Delta {
	d := &model.Delta{}
	any := false

	if shadow.ActiveWindow != current.ActiveWindow {
		v := current.ActiveWindow
		d.ActiveWindow = &v
		any = true
	}
	if shadow.ActivePane != current.ActivePane {
		v := current.ActivePane
		d.ActivePane = &v
		any = true
	}
	if shadow.StatusLine != current.StatusLine {
		v := current.StatusLine
		d.StatusLine = &v
		any = true
	}

	windows := diffWindows(shadow.Windows, current.Windows)
	if len(windows) > 0 {
		d.Windows = windows
		any = true
	}

	panes := diffPanes(shadow.Panes, current.Panes, dirty)
	if len(panes) > 0 {
		d.Panes = panes
		any = true
	}

	if !any {
		return nil
	}
	return d
}

func diffWindows(shadow, current map[string]model.WindowView) map[string]*model.WindowDelta {
	out := make(map[string]*model.WindowDelta)
	for id := range shadow {
		if _, ok := current[id]; !ok {
			out[id] = nil // removed
		}
	}
	for id, cw := range current {
		sw, existed := shadow[id]
		if !existed {
			name := cw.Name
			out[id] = &model.WindowDelta{Name: &name, PaneOrder: cw.PaneOrder}
			continue
		}
		var wd model.WindowDelta
		changed := false
		if sw.Name != cw.Name {
			name := cw.Name
			wd.Name = &name
			changed = true
		}
		if !reflect.DeepEqual(sw.PaneOrder, cw.PaneOrder) {
			wd.PaneOrder = cw.PaneOrder
			changed = true
		}
		if changed {
			out[id] = &wd
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func diffPanes(shadow, current map[string]model.PaneView, dirty map[string]bool) map[string]*model.PaneDelta {
	out := make(map[string]*model.PaneDelta)
	for id := range shadow {
		if _, ok := current[id]; !ok {
			out[id] = nil // removed
		}
	}
	for id, cp := range current {
		sp, existed := shadow[id]
		if !existed {
			out[id] = fullPaneDelta(cp)
			continue
		}
		if pd := partialPaneDelta(sp, cp, dirty[id]); pd != nil {
			out[id] = pd
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fullPaneDelta(cp model.PaneView) *model.PaneDelta {
	cols, rows := cp.Cols, cp.Rows
	cx, cy := cp.CursorX, cp.CursorY
	active := cp.Active
	title := cp.Title
	mode := cp.Mode
	return &model.PaneDelta{
		Content: rowMap(cp.Content, nil),
		CursorX: &cx, CursorY: &cy,
		Active: &active, Title: &title, Mode: &mode,
		Cols: &cols, Rows: &rows,
	}
}

// partialPaneDelta emits only the fields that differ, per spec §4.3's
// row-wise content comparator: a row that differs in any cell is emitted
// whole, unchanged rows are omitted.
func partialPaneDelta(sp, cp model.PaneView, _ bool) *model.PaneDelta {
	var pd model.PaneDelta
	changed := false

	content := rowMap(cp.Content, sp.Content)
	if len(content) > 0 {
		pd.Content = content
		changed = true
	}

	if sp.CursorX != cp.CursorX || sp.CursorY != cp.CursorY {
		cx, cy := cp.CursorX, cp.CursorY
		pd.CursorX, pd.CursorY = &cx, &cy
		changed = true
	}
	if sp.Active != cp.Active {
		v := cp.Active
		pd.Active = &v
		changed = true
	}
	if sp.Title != cp.Title {
		v := cp.Title
		pd.Title = &v
		changed = true
	}
	if sp.Mode != cp.Mode {
		v := cp.Mode
		pd.Mode = &v
		changed = true
	}
	// Resizing a pane to its current dimensions is a no-op (spec §8.8).
	if sp.Cols != cp.Cols || sp.Rows != cp.Rows {
		cols, rows := cp.Cols, cp.Rows
		pd.Cols, pd.Rows = &cols, &rows
		changed = true
	}

	if !changed {
		return nil
	}
	return &pd
}

// rowMap returns the rows of cur that differ from prev (or all rows, if
// prev is nil), keyed by row index.
func rowMap(cur, prev []model.Row) map[int]model.Row {
	out := make(map[int]model.Row)
	for i, row := range cur {
		if prev == nil || i >= len(prev) || !rowEqual(row, prev[i]) {
			out[i] = row
		}
	}
	return out
}

func rowEqual(a, b model.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
