package bus

import (
	"testing"
	"time"
)

func TestSetGetSignal(t *testing.T) {
	b := NewLoopback()
	if b.Get(SignalBSY) {
		t.Fatal("expected BSY to start false")
	}
	b.Set(SignalBSY, true)
	if !b.Get(SignalBSY) {
		t.Fatal("expected BSY to be true after Set")
	}
}

func TestWaitForSelectionDeliversTargetID(t *testing.T) {
	b := NewLoopback()
	b.SetData(0x04) // target ID 2, bit 2 set
	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Set(SignalSEL, true)
	}()
	id, timedOut := b.WaitForSelection(100 * time.Millisecond)
	if timedOut {
		t.Fatal("expected selection to be delivered before timeout")
	}
	if id != 0x04 {
		t.Fatalf("expected data-line snapshot 0x04, got %#x", id)
	}
}

func TestWaitForSelectionTimesOutWithNoSelection(t *testing.T) {
	b := NewLoopback()
	_, timedOut := b.WaitForSelection(10 * time.Millisecond)
	if !timedOut {
		t.Fatal("expected a timeout with no SEL assertion")
	}
}

func TestSendReceiveHandshakeTransfersBytes(t *testing.T) {
	b := NewLoopback()
	payload := []byte{0x11, 0x22, 0x33}
	received := make([]byte, len(payload))

	done := make(chan struct{})
	go func() {
		n, timedOut := b.ReceiveHandshake(received, len(received))
		if timedOut || n != len(payload) {
			t.Errorf("receive side: n=%d timedOut=%v", n, timedOut)
		}
		close(done)
	}()

	n, timedOut := b.SendHandshake(payload, len(payload), 0)
	if timedOut || n != len(payload) {
		t.Fatalf("send side: n=%d timedOut=%v", n, timedOut)
	}
	<-done
	for i := range payload {
		if received[i] != payload[i] {
			t.Errorf("byte %d: got %#x want %#x", i, received[i], payload[i])
		}
	}
}

func TestCommandHandshakeRejectsZeroLengthBuffer(t *testing.T) {
	b := NewLoopback()
	if _, err := b.CommandHandshake(nil); err == nil {
		t.Fatal("expected an error for a zero-length command buffer")
	}
}

func TestResetPulsesRST(t *testing.T) {
	b := NewLoopback()
	done := make(chan struct{})
	go func() {
		b.Reset()
		close(done)
	}()
	// During the pulse window RST should observably be true at least once.
	for !b.Get(SignalRST) {
		select {
		case <-done:
			t.Fatal("expected RST to be asserted mid-pulse")
		default:
		}
	}
	<-done
	if b.Get(SignalRST) {
		t.Fatal("expected RST to be deasserted after Reset returns")
	}
}
