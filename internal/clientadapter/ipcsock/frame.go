package ipcsock

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame types for the post-handshake byte stream (spec §4.5 ipcsock:
// length-prefixed frames), grounded directly on the teacher's own
// session/message/protocol.go framing.
const (
	FrameTypeData    byte = 0x00 // one JSON clientadapter.Envelope
	FrameTypeControl byte = 0x01 // one JSON clientadapter.Command or InvokeResult
)

const maxFrameLen = 10 * 1024 * 1024 // 10MB sanity limit, same bound as the teacher's

// WriteFrame writes [1-byte type][4-byte big-endian length][payload].
func WriteFrame(w io.Writer, frameType byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	frameType := header[0]
	length := binary.BigEndian.Uint32(header[1:5])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("ipcsock: frame too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return frameType, payload, nil
}
