package bus

import "testing"

func TestTestDoubleCommandHandshakeReadsQueuedBytes(t *testing.T) {
	b := NewTestDouble()
	b.Inbound = []byte{0x28, 0, 0, 0, 0, 0, 0, 0, 1, 0} // a READ(10) CDB
	buf := make([]byte, 10)
	n, err := b.CommandHandshake(buf)
	if err != nil || n != 10 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if buf[0] != 0x28 {
		t.Fatalf("expected opcode 0x28, got %#x", buf[0])
	}
	if len(b.Inbound) != 0 {
		t.Fatalf("expected Inbound to be drained, got %d bytes left", len(b.Inbound))
	}
}

func TestTestDoubleSendHandshakeCapturesOutbound(t *testing.T) {
	b := NewTestDouble()
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	n, timedOut := b.SendHandshake(payload, len(payload), 0)
	if timedOut || n != len(payload) {
		t.Fatalf("n=%d timedOut=%v", n, timedOut)
	}
	if len(b.Outbound) != len(payload) {
		t.Fatalf("expected Outbound to capture %d bytes, got %d", len(payload), len(b.Outbound))
	}
}

func TestTestDoubleWaitForSelectionScripted(t *testing.T) {
	b := NewTestDouble()
	b.SelectionTargetID = 5
	id, timedOut := b.WaitForSelection(0)
	if timedOut || id != 5 {
		t.Fatalf("expected scripted selection id=5, got id=%d timedOut=%v", id, timedOut)
	}

	b.SelectionTimeout = true
	_, timedOut = b.WaitForSelection(0)
	if !timedOut {
		t.Fatal("expected scripted timeout")
	}
}

func TestTestDoubleReceiveHandshakeReportsShortRead(t *testing.T) {
	b := NewTestDouble()
	b.Inbound = []byte{0x01, 0x02}
	buf := make([]byte, 5)
	n, timedOut := b.ReceiveHandshake(buf, 5)
	if n != 2 || !timedOut {
		t.Fatalf("expected a short read (n=2, timedOut=true), got n=%d timedOut=%v", n, timedOut)
	}
}
