package vt

import "testing"

func TestParser_FeedPlainText(t *testing.T) {
	p := NewParser(2, 10)
	p.Feed([]byte("hi"))
	g := p.Snapshot()
	if g.Cells[0][0].Char != 'h' || g.Cells[0][1].Char != 'i' {
		t.Fatalf("unexpected content: %q %q", g.Cells[0][0].Char, g.Cells[0][1].Char)
	}
}

func TestParser_AlternateScreenSwitch(t *testing.T) {
	p := NewParser(2, 10)
	p.Feed([]byte("main"))
	if p.AlternateActive() {
		t.Fatal("should start on primary screen")
	}

	p.Feed([]byte("\x1b[?1049h"))
	if !p.AlternateActive() {
		t.Fatal("expected alternate screen after 1049h")
	}
	alt := p.Snapshot()
	if alt.Cells[0][0].Char != ' ' {
		t.Fatalf("alternate screen should start blank, got %q", alt.Cells[0][0].Char)
	}

	p.Feed([]byte("altcontent"))
	p.Feed([]byte("\x1b[?1049l"))
	if p.AlternateActive() {
		t.Fatal("expected primary screen after 1049l")
	}
	restored := p.Snapshot()
	if restored.Cells[0][0].Char != 'm' {
		t.Fatalf("primary screen content should be restored, got %q", restored.Cells[0][0].Char)
	}
}

func TestParser_AlternateScreenMode47(t *testing.T) {
	p := NewParser(1, 10)
	p.Feed([]byte("x"))
	p.Feed([]byte("\x1b[?47h"))
	if !p.AlternateActive() {
		t.Fatal("47h should also trigger alternate screen")
	}
	p.Feed([]byte("\x1b[?47l"))
	if p.AlternateActive() {
		t.Fatal("47l should restore primary screen")
	}
}

func TestParser_Resize(t *testing.T) {
	p := NewParser(2, 2)
	p.Feed([]byte("ab"))
	p.Resize(3, 3)
	g := p.Snapshot()
	if g.Rows != 3 || g.Cols != 3 {
		t.Fatalf("dims after resize = %d,%d", g.Rows, g.Cols)
	}
}
