package printer

import (
	"testing"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

func printCDB(length int) []byte {
	cdb := make([]byte, 6)
	cdb[0] = byte(scsiproto.OpPrint)
	cdb[2] = byte(length >> 16)
	cdb[3] = byte(length >> 8)
	cdb[4] = byte(length)
	return cdb
}

func TestSynchronizeBufferWithoutPrintFails(t *testing.T) {
	p := New(0, 0)
	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpSynchronizeBuffer), 0, 0, 0, 0, 0}}
	_, err := p.Dispatch(scsiproto.OpSynchronizeBuffer, ctx)
	ex, ok := err.(*scsiproto.Exception)
	if !ok {
		t.Fatalf("expected a *scsiproto.Exception, got %v", err)
	}
	if ex.Asc != scsiproto.AscPrinterNothingToPrint {
		t.Fatalf("got ASC 0x%04x, want AscPrinterNothingToPrint", uint16(ex.Asc))
	}
	if p.ErrorCount != 1 {
		t.Fatalf("expected ErrorCount 1, got %d", p.ErrorCount)
	}
}

func TestPrintThenSynchronizeBufferCountsJob(t *testing.T) {
	p := New(0, 0)
	payload := []byte("hello printer")

	pctx := &device.Context{CDB: printCDB(len(payload)), DataOut: payload}
	if _, err := p.Dispatch(scsiproto.OpPrint, pctx); err != nil {
		t.Fatalf("print failed: %v", err)
	}

	sctx := &device.Context{CDB: []byte{byte(scsiproto.OpSynchronizeBuffer), 0, 0, 0, 0, 0}}
	if _, err := p.Dispatch(scsiproto.OpSynchronizeBuffer, sctx); err != nil {
		t.Fatalf("synchronize buffer failed: %v", err)
	}
	if p.PrintedCount != 1 {
		t.Fatalf("expected PrintedCount 1, got %d", p.PrintedCount)
	}
	if len(p.buffer) != 0 {
		t.Fatalf("expected buffer cleared after sync, got %d bytes", len(p.buffer))
	}
}

func TestStopPrintDiscardsBufferedData(t *testing.T) {
	p := New(0, 0)
	payload := []byte("discard me")
	pctx := &device.Context{CDB: printCDB(len(payload)), DataOut: payload}
	if _, err := p.Dispatch(scsiproto.OpPrint, pctx); err != nil {
		t.Fatalf("print failed: %v", err)
	}

	stopCtx := &device.Context{CDB: []byte{byte(scsiproto.OpStopPrint), 0, 0, 0, 0, 0}}
	if _, err := p.Dispatch(scsiproto.OpStopPrint, stopCtx); err != nil {
		t.Fatalf("stop print failed: %v", err)
	}

	syncCtx := &device.Context{CDB: []byte{byte(scsiproto.OpSynchronizeBuffer), 0, 0, 0, 0, 0}}
	if _, err := p.Dispatch(scsiproto.OpSynchronizeBuffer, syncCtx); err == nil {
		t.Fatal("expected nothing-to-print after STOP PRINT discarded the buffer")
	}
}

func TestPrintRejectsOversizedTransfer(t *testing.T) {
	p := New(0, 0)
	ctx := &device.Context{CDB: printCDB(maxBufferedBytes + 1), DataOut: make([]byte, maxBufferedBytes+1)}
	if _, err := p.Dispatch(scsiproto.OpPrint, ctx); err == nil {
		t.Fatal("expected an error for a transfer exceeding the buffer limit")
	}
}
