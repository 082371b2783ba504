package bridgeerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Sentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrNoMonitor, KindNoMonitor},
		{ErrTimeout, KindTimeout},
		{ErrConnectionLost, KindTransport},
		{ErrUnmatchedReply, KindProtocol},
		{fmt.Errorf("wrapped: %w", ErrTimeout), KindTimeout},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestWrap_UnwrapsToErr(t *testing.T) {
	cause := errors.New("pipe closed")
	err := Wrap(KindTransport, "write failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("Wrap should preserve errors.Is chain to the cause")
	}
	if KindOf(err) != KindTransport {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestCommandError_Kind(t *testing.T) {
	ce := &CommandError{CmdID: 3, Text: "can't find pane %999"}
	if KindOf(ce) != KindCommandError {
		t.Errorf("KindOf(CommandError) = %q", KindOf(ce))
	}
}
