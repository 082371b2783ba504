package cmd

import "testing"

func TestSendKeysCommand_HexEncodesEachByte(t *testing.T) {
	got := sendKeysCommand("%1", []byte{0x1b, 'a', 0x0d})
	want := "send-keys -t %1 -H 1b 61 0d"
	if got != want {
		t.Errorf("sendKeysCommand() = %q, want %q", got, want)
	}
}

func TestSendKeysCommand_EmptyData(t *testing.T) {
	got := sendKeysCommand("%1", nil)
	want := "send-keys -t %1 -H "
	if got != want {
		t.Errorf("sendKeysCommand() = %q, want %q", got, want)
	}
}
