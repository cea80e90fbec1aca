package netadapter

import (
	"testing"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

func TestGetMessage6ReportsNoPacketAvailable(t *testing.T) {
	n := New(0, 0)
	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpRead6), 0, 0, 0, 0, 0}}
	if _, err := n.Dispatch(scsiproto.OpRead6, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.DataIn) != 2 || ctx.DataIn[0] != 0 || ctx.DataIn[1] != 0 {
		t.Fatalf("expected a zero-length packet header, got %v", ctx.DataIn)
	}
}

func TestSendMessage6Succeeds(t *testing.T) {
	n := New(0, 0)
	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpWrite6), 0, 0, 0, 0, 0}, DataOut: []byte{1, 2, 3}}
	if _, err := n.Dispatch(scsiproto.OpWrite6, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetrieveStatsHonorsAllocationLength(t *testing.T) {
	n := New(0, 0)
	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpRetrieveStats), 0, 0, 0, 0, 0}, AllocationLength: 4}
	if _, err := n.Dispatch(scsiproto.OpRetrieveStats, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.DataIn) != 4 {
		t.Fatalf("expected 4-byte truncated stats block, got %d", len(ctx.DataIn))
	}
}

func TestNetworkAdapterDeviceTypeCode(t *testing.T) {
	n := New(0, 0)
	if n.DeviceTypeCode() != scsiproto.DeviceNetworkAdapter {
		t.Fatalf("got %v, want DeviceNetworkAdapter", n.DeviceTypeCode())
	}
}
