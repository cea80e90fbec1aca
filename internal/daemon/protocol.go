// Package daemon implements the control-channel daemon loop (C11):
// accepting control connections, framing the binary wire protocol from
// spec.md §6, dispatching to internal/executor, and driving the bus loop.
// Grounded on the teacher's citd.go accept loop and iscsid.go's Run()/
// rxHandler framing idiom, adapted from iSCSI PDUs to the flat
// length-prefixed record spec.md §6 describes.
package daemon

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameErrorLength is the sentinel length that is always a hard framing
// error, per spec.md §6.
const FrameErrorLength = 0xFFFFFFFF

const maxFrameSize = 64 * 1024 * 1024

// ReadFrame reads one 4-byte little-endian length prefix followed by that
// many bytes. A length of FrameErrorLength or a truncated body is a hard
// framing error that closes the connection, per spec.md §6.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == FrameErrorLength {
		return nil, fmt.Errorf("daemon: framing error: sentinel length received")
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("daemon: frame too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("daemon: truncated frame body: %w", err)
	}
	return buf, nil
}

// WriteFrame writes payload with its 4-byte little-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
