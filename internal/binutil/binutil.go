// Package binutil collects the big-endian wire helpers every SCSI layer
// needs, adapted from the teacher's pkg/util package.
package binutil

import (
	"encoding/binary"
	"golang.org/x/sys/unix"
)

func Uint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func Uint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func Uint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func PutUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func PutUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// PadString copies s into a fixed-width, space-padded byte field the way
// INQUIRY vendor/product/revision fields are encoded on the wire.
func PadString(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	if len(s) > width {
		copy(out, s[:width])
	}
	return out
}

// Fdatasync flushes a track buffer's backing fd to stable storage, promoted
// from the teacher's raw syscall.Syscall6 Fadvise/Fdatasync helpers to the
// typed x/sys/unix wrappers.
func Fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}

// Fadvise hints the kernel about the access pattern for a track range,
// matching the teacher's util.Fadvise but via the typed unix package.
func Fadvise(fd int, offset int64, length int64, advice int) error {
	return unix.Fadvise(fd, offset, length, advice)
}

const (
	PosixFadvNormal     = unix.FADV_NORMAL
	PosixFadvSequential = unix.FADV_SEQUENTIAL
	PosixFadvDontNeed   = unix.FADV_DONTNEED
)
