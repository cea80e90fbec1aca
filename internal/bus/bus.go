// Package bus defines the Bus capability (C1): typed signal get/set, byte
// handshakes, and selection/reset waits. Implementations may be real GPIO,
// an in-process loopback connecting an initiator to a target in the same
// process, or a test double, per spec.md §4.1. The teacher has no parallel
// SCSI bus analogue, so this is built fresh; the shape of "wait with a
// timeout flag, return bytes transferred" follows the request/response
// idiom of the teacher's iscsit connection read/write helpers.
package bus

import "time"

// Signal names one SCSI bus line.
type Signal int

const (
	SignalBSY Signal = iota
	SignalSEL
	SignalCD // command/data
	SignalIO
	SignalMSG
	SignalREQ
	SignalACK
	SignalATN
	SignalRST
)

// ResetPulseWidth is the RST pulse width Reset uses; the standard requires
// at least 25µs (spec.md §4.1), this implementation uses 50µs like the
// reference it was distilled from.
const ResetPulseWidth = 50 * time.Microsecond

// DefaultTimeout bounds wait_req/wait_ack/wait_for_selection polling.
const DefaultTimeout = 250 * time.Millisecond

// Bus is the low-level signal and handshake capability every controller
// drives, per spec.md §4.1.
type Bus interface {
	Get(sig Signal) bool
	Set(sig Signal, level bool)

	// Acquire returns a snapshot of all data lines.
	Acquire() byte
	SetData(b byte)

	// CommandHandshake reads a CDB of the length implied by the first byte
	// received (6/10/12/16, from the opcode group).
	CommandHandshake(buf []byte) (int, error)

	// SendHandshake/ReceiveHandshake run the REQ/ACK byte cycle for count
	// bytes; they return the number of bytes actually transferred.
	SendHandshake(data []byte, count int, delayAfter time.Duration) (int, bool)
	ReceiveHandshake(data []byte, count int) (int, bool)

	// WaitForSelection blocks until SEL rises with a target ID asserted on
	// the data lines.
	WaitForSelection(timeout time.Duration) (targetID int, timedOut bool)
	WaitReq(level bool, timeout time.Duration) (timedOut bool)
	WaitAck(level bool, timeout time.Duration) (timedOut bool)

	// Reset pulses RST for at least ResetPulseWidth.
	Reset()
}
