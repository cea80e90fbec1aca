package device

import (
	"testing"

	"github.com/s2p-go/s2pd/internal/scsiproto"
)

func newTestModePageDevice() *ModePageDevice {
	d := NewDevice(0, 0, scsiproto.DeviceFixedDisk)
	p := NewPrimaryDevice(d)
	m := NewModePageDevice(p)
	m.BlockCount = 1024
	m.BlockSize = 512
	m.SupportedBlockSizes = map[uint32]bool{512: true, 1024: true}
	m.Pages[0x01] = make([]byte, 6)
	m.Pages[0x08] = make([]byte, 10)
	return m
}

func TestModeSense6ReturnsBlockDescriptorAndPage(t *testing.T) {
	m := newTestModePageDevice()
	ctx := &Context{CDB: []byte{byte(scsiproto.OpModeSense6), 0, 0x01, 0, 255, 0}}
	if _, err := m.Dispatch(scsiproto.OpModeSense6, ctx); err != nil {
		t.Fatalf("MODE SENSE(6) failed: %v", err)
	}
	if len(ctx.DataIn) == 0 {
		t.Fatal("expected non-empty MODE SENSE response")
	}
	if ctx.DataIn[3] != 8 {
		t.Errorf("expected 8-byte block descriptor length, got %d", ctx.DataIn[3])
	}
}

func TestModeSense6DBDSuppressesBlockDescriptor(t *testing.T) {
	m := newTestModePageDevice()
	ctx := &Context{CDB: []byte{byte(scsiproto.OpModeSense6), 0x08, 0x01, 0, 255, 0}}
	if _, err := m.Dispatch(scsiproto.OpModeSense6, ctx); err != nil {
		t.Fatalf("MODE SENSE(6) failed: %v", err)
	}
	if ctx.DataIn[3] != 0 {
		t.Errorf("expected zero block descriptor length with DBD set, got %d", ctx.DataIn[3])
	}
}

func TestModeSenseAllPagesOrdersPageZeroLast(t *testing.T) {
	m := newTestModePageDevice()
	m.Pages[0x00] = []byte{0x01}
	codes := m.orderedPageCodes()
	if len(codes) == 0 || codes[len(codes)-1] != 0x00 {
		t.Fatalf("expected page 0 last, got %v", codes)
	}
}

func TestModeSelect6RejectsUnknownPageSizeMismatch(t *testing.T) {
	m := newTestModePageDevice()
	// header(4) + page(2 + 3 bytes, wrong size for page 0x01 which is 6 bytes registered)
	data := make([]byte, 4)
	data[3] = 0 // no block descriptor
	data = append(data, 0x01, 3, 0, 0, 0)
	ctx := &Context{CDB: []byte{byte(scsiproto.OpModeSelect6), 0x10, 0, 0, 0, 0}, DataOut: data}
	_, err := m.Dispatch(scsiproto.OpModeSelect6, ctx)
	if err == nil {
		t.Fatal("expected size-mismatch rejection")
	}
}

func TestModeSelect6AcceptsMatchingPageSize(t *testing.T) {
	m := newTestModePageDevice()
	data := make([]byte, 4)
	data[3] = 0
	pageData := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	data = append(data, 0x01, byte(len(pageData)))
	data = append(data, pageData...)
	ctx := &Context{CDB: []byte{byte(scsiproto.OpModeSelect6), 0x10, 0, 0, 0, 0}, DataOut: data}
	if _, err := m.Dispatch(scsiproto.OpModeSelect6, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Pages[0x01]; string(got) != string(pageData) {
		t.Errorf("page data not updated: got %v want %v", got, pageData)
	}
}

func TestModeSelect6WithoutPFIsNoOp(t *testing.T) {
	m := newTestModePageDevice()
	before := m.Pages[0x01]
	ctx := &Context{CDB: []byte{byte(scsiproto.OpModeSelect6), 0x00, 0, 0, 0, 0}, DataOut: []byte{}}
	if _, err := m.Dispatch(scsiproto.OpModeSelect6, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(m.Pages[0x01]) != string(before) {
		t.Error("expected no mutation when PF bit is clear")
	}
}

func TestVerifyBlockSizeChange(t *testing.T) {
	m := newTestModePageDevice()
	if m.verifyBlockSizeChange(0, false) {
		t.Error("zero size should be rejected")
	}
	if m.verifyBlockSizeChange(513, false) {
		t.Error("non-multiple-of-4 size should be rejected")
	}
	if !m.verifyBlockSizeChange(2048, true) {
		t.Error("temporary override should accept any multiple-of-4 size")
	}
	if m.verifyBlockSizeChange(2048, false) {
		t.Error("permanent change to an unsupported size should be rejected")
	}
	if !m.verifyBlockSizeChange(1024, false) {
		t.Error("permanent change to a supported size should be accepted")
	}
}

func TestCustomOverrideSuppressesPage(t *testing.T) {
	m := newTestModePageDevice()
	m.CustomOverride = func(code byte) ([]byte, bool) {
		if code == 0x08 {
			return nil, true // present but empty: suppress
		}
		return nil, false
	}
	data, ok := m.pageBytes(0x08)
	if ok || len(data) != 0 {
		t.Errorf("expected page 0x08 suppressed by override, got data=%v ok=%v", data, ok)
	}
	data, ok = m.pageBytes(0x01)
	if !ok || len(data) == 0 {
		t.Error("expected page 0x01 to fall through to the base table")
	}
}
