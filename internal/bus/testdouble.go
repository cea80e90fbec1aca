package bus

import "time"

// TestDouble is a scripted Bus for unit tests: selection and handshakes
// succeed immediately against pre-loaded data, per spec.md §4.1 option (c).
type TestDouble struct {
	Signals map[Signal]bool
	Data    byte

	SelectionTargetID int
	SelectionTimeout  bool

	Inbound  []byte // bytes the "initiator" has queued for CommandHandshake/ReceiveHandshake
	Outbound []byte // bytes captured from SendHandshake
}

func NewTestDouble() *TestDouble {
	return &TestDouble{Signals: map[Signal]bool{}}
}

func (t *TestDouble) Get(sig Signal) bool       { return t.Signals[sig] }
func (t *TestDouble) Set(sig Signal, level bool) { t.Signals[sig] = level }
func (t *TestDouble) Acquire() byte             { return t.Data }
func (t *TestDouble) SetData(v byte)            { t.Data = v }

func (t *TestDouble) CommandHandshake(buf []byte) (int, error) {
	n, _ := t.ReceiveHandshake(buf, len(buf))
	return n, nil
}

func (t *TestDouble) SendHandshake(data []byte, count int, delayAfter time.Duration) (int, bool) {
	n := count
	if n > len(data) {
		n = len(data)
	}
	t.Outbound = append(t.Outbound, data[:n]...)
	return n, false
}

func (t *TestDouble) ReceiveHandshake(data []byte, count int) (int, bool) {
	n := count
	if n > len(t.Inbound) {
		n = len(t.Inbound)
	}
	if n > len(data) {
		n = len(data)
	}
	copy(data, t.Inbound[:n])
	t.Inbound = t.Inbound[n:]
	return n, n < count
}

func (t *TestDouble) WaitForSelection(timeout time.Duration) (int, bool) {
	return t.SelectionTargetID, t.SelectionTimeout
}

func (t *TestDouble) WaitReq(level bool, timeout time.Duration) bool { return false }
func (t *TestDouble) WaitAck(level bool, timeout time.Duration) bool { return false }

func (t *TestDouble) Reset() {
	t.Signals[SignalRST] = false
}
