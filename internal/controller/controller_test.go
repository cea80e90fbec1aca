package controller

import (
	"testing"

	"github.com/s2p-go/s2pd/internal/disk"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// memBackend is a minimal in-memory cache.Backend, mirroring the doubles
// used in internal/cache and internal/disk's own tests.
type memBackend struct {
	data []byte
}

func newMemBackend(size int) *memBackend { return &memBackend{data: make([]byte, size)} }

func (b *memBackend) ReadAt(p []byte, off int64) (int, error)  { return copy(p, b.data[off:]), nil }
func (b *memBackend) WriteAt(p []byte, off int64) (int, error) { return copy(b.data[off:], p), nil }
func (b *memBackend) Sync() error                              { return nil }

func identifyByte(lun int) byte { return 0x80 | byte(lun&0x1f) }

func inquiryCDB() []byte { return []byte{byte(scsiproto.OpInquiry), 0, 0, 0, 36, 0} }

func TestExtractLUNPrefersIdentify(t *testing.T) {
	id := identifyByte(3)
	if got := ExtractLUN(&id, []byte{byte(scsiproto.OpInquiry), 0x40, 0, 0, 0, 0}); got != 3 {
		t.Errorf("expected LUN 3 from IDENTIFY, got %d", got)
	}
}

func TestExtractLUNFallsBackToCDB(t *testing.T) {
	cdb := []byte{byte(scsiproto.OpInquiry), 0x40, 0, 0, 0, 0} // bits 5..7 = 010 -> LUN 2
	if got := ExtractLUN(nil, cdb); got != 2 {
		t.Errorf("expected LUN 2 from CDB fallback, got %d", got)
	}
}

func TestExecuteUnpopulatedLUNInquiryReturnsGoodWithQualifierNotSupported(t *testing.T) {
	c := New(0)
	res := c.Execute(0, nil, inquiryCDB(), nil)
	if res.Status != scsiproto.StatusGood {
		t.Fatalf("expected GOOD status for INQUIRY to unpopulated LUN, got %v", res.Status)
	}
	if len(res.DataIn) == 0 || res.DataIn[0] != scsiproto.PeripheralQualifierNotSupported {
		t.Fatalf("expected peripheral qualifier 'not supported', got %v", res.DataIn)
	}
}

func TestExecuteUnpopulatedLUNNonInquiryReturnsCheckCondition(t *testing.T) {
	c := New(0)
	cdb := []byte{byte(scsiproto.OpTestUnitReady)}
	res := c.Execute(0, nil, cdb, nil)
	if res.Status != scsiproto.StatusCheckCondition {
		t.Fatalf("expected CHECK CONDITION, got %v", res.Status)
	}
}

func TestExecuteUnpopulatedLUNLatchesSenseOnLUNZero(t *testing.T) {
	c := New(0)
	d := disk.NewFixedDisk(0, 0, 512, 1024, newMemBackend(1<<20))
	c.AttachLUN(0, d)

	identify := byte(0x80 | 3) // IDENTIFY message selecting LUN 3, which is unpopulated
	cdb := []byte{byte(scsiproto.OpTestUnitReady), 0, 0, 0, 0, 0}
	res := c.Execute(0, &identify, cdb, nil)
	if res.Status != scsiproto.StatusCheckCondition {
		t.Fatalf("expected CHECK CONDITION, got %v", res.Status)
	}

	senseCDB := []byte{byte(scsiproto.OpRequestSense), 0, 0, 0, 255, 0}
	senseRes := c.Execute(0, nil, senseCDB, nil)
	if senseRes.Status != scsiproto.StatusGood {
		t.Fatalf("expected GOOD for REQUEST SENSE, got %v", senseRes.Status)
	}
	if len(senseRes.DataIn) < 13 {
		t.Fatalf("sense data too short: %v", senseRes.DataIn)
	}
	if got := scsiproto.SenseKey(senseRes.DataIn[2] & 0x0f); got != scsiproto.IllegalRequest {
		t.Fatalf("expected sense key illegal request, got %v", got)
	}
	if got := senseRes.DataIn[12]; got != byte(scsiproto.AscLogicalUnitNotSupported>>8) {
		t.Fatalf("expected ASC logical unit not supported, got 0x%02x", got)
	}
}

func TestExecuteRoutesToAttachedLUN(t *testing.T) {
	c := New(0)
	d := disk.NewFixedDisk(0, 0, 512, 1024, newMemBackend(1<<20))
	c.AttachLUN(0, d)

	res := c.Execute(0, nil, inquiryCDB(), nil)
	if res.Status != scsiproto.StatusGood {
		t.Fatalf("expected GOOD, got %v", res.Status)
	}
	if len(res.DataIn) != 36 {
		t.Fatalf("expected 36-byte INQUIRY payload, got %d", len(res.DataIn))
	}
}

func TestExecuteInquiryZeroAllocationLengthReturnsZeroBytes(t *testing.T) {
	c := New(0)
	d := disk.NewFixedDisk(0, 0, 512, 1024, newMemBackend(1<<20))
	c.AttachLUN(0, d)

	cdb := []byte{byte(scsiproto.OpInquiry), 0, 0, 0, 0, 0} // allocation length 0
	res := c.Execute(0, nil, cdb, nil)
	if res.Status != scsiproto.StatusGood {
		t.Fatalf("expected GOOD, got %v", res.Status)
	}
	if len(res.DataIn) != 0 {
		t.Fatalf("expected 0-byte INQUIRY payload for allocation length 0, got %d", len(res.DataIn))
	}
}

func TestExecuteReservationConflict(t *testing.T) {
	c := New(0)
	d := disk.NewFixedDisk(0, 0, 512, 1024, newMemBackend(1<<20))
	c.AttachLUN(0, d)

	c.Execute(0, nil, []byte{byte(scsiproto.OpReserve6)}, nil)

	readCDB := []byte{byte(scsiproto.OpRead10), 0, 0, 0, 0, 0, 0, 0, 1, 0}
	res := c.Execute(1, nil, readCDB, nil)
	if res.Status != scsiproto.StatusReservationConflict {
		t.Fatalf("expected RESERVATION CONFLICT for a non-owning initiator, got %v", res.Status)
	}
}

func TestResetClearsPhaseAndDeviceState(t *testing.T) {
	c := New(0)
	d := disk.NewFixedDisk(0, 0, 512, 1024, newMemBackend(1<<20))
	c.AttachLUN(0, d)
	c.Execute(0, nil, []byte{byte(scsiproto.OpReserve6)}, nil)

	c.Reset()
	if c.Phase() != PhaseBusFree {
		t.Errorf("expected bus_free after reset, got %v", c.Phase())
	}
	if d.Reserve.IsReserved() {
		t.Error("expected reservation cleared after bus reset")
	}
}

func TestFactoryLifecycle(t *testing.T) {
	f := NewFactory()
	c := f.GetOrCreate(2)
	d := disk.NewFixedDisk(2, 0, 512, 100, newMemBackend(1<<16))
	c.AttachLUN(0, d)

	if _, ok := f.Get(2); !ok {
		t.Fatal("expected controller 2 to exist")
	}
	f.RemoveIfEmpty(2)
	if _, ok := f.Get(2); !ok {
		t.Fatal("controller should not be removed while it still has a LUN")
	}

	c.DetachLUN(0)
	f.RemoveIfEmpty(2)
	if _, ok := f.Get(2); ok {
		t.Fatal("expected controller 2 to be removed once empty")
	}
}
