package aggregator

import (
	"strconv"
	"strings"

	"tmuxbridge/internal/model"
)

// applyStructuralResync parses the output of resyncStructural's batched
// command (three list-windows/list-panes/display-message blocks joined
// by " ; ", so three reply blocks concatenated by Connection.Send) and
// updates the model's structural fields that are not otherwise pushed as
// notifications (spec §4.3: cursor blink state, unchanged titles, the
// status line).
//
// Each `;`-separated tmux command produces its own %begin/%end block; by
// the time this function runs, Connection.sendLines has already joined
// their reply text with newlines per command in submission order, so out
// is windows-lines, then panes-lines, then the status line, all
// newline-separated with blank-line command boundaries collapsed by the
// caller's split below.
func applyStructuralResync(sess *model.Session, out string) {
	blocks := strings.SplitN(out, "\n", -1)
	// We can't reliably tell block boundaries apart without sentinel
	// markers (three independent commands concatenated), so to keep this
	// grounded and conservative we parse windows/panes lines by shape
	// instead of position: window lines start with '@', pane lines with
	// '%', everything else is treated as the status line once seen.
	var statusLine string
	for _, line := range blocks {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line[0] {
		case '@':
			applyWindowLine(sess, line)
		case '%':
			applyPaneLine(sess, line)
		default:
			statusLine = line
		}
	}
	if statusLine != "" {
		sess.StatusLine = statusLine
	}
}

func applyWindowLine(sess *model.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return
	}
	id := fields[0]
	index, _ := strconv.Atoi(fields[1])
	name := fields[2]
	active := fields[3] == "1"

	w := sess.Window(id)
	if w == nil {
		w = &model.Window{ID: id}
		sess.AddWindow(w)
	}
	w.Index = index
	w.Name = name
	if active {
		sess.ActiveWindow = id
	}
}

func applyPaneLine(sess *model.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return
	}
	id := fields[0]
	windowID := fields[1]
	cols, _ := strconv.Atoi(fields[2])
	rows, _ := strconv.Atoi(fields[3])
	x, _ := strconv.Atoi(fields[4])
	y, _ := strconv.Atoi(fields[5])
	active := fields[6] == "1"
	title := fields[7]
	inMode := len(fields) > 9 && fields[9] == "1"

	p := sess.Pane(id)
	if p == nil {
		p = model.NewPane(id, windowID, cols, rows)
		sess.AddPane(p)
	} else {
		p.Resize(cols, rows)
	}
	p.X, p.Y = x, y
	p.Active = active
	p.Title = title
	p.Command = fields[8]
	p.CopyMode = inMode
	if active {
		if w := sess.Window(windowID); w != nil {
			w.ActivePane = id
		}
	}
}
