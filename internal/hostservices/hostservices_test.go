package hostservices

import (
	"testing"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

func startStopCDB(start, load bool) []byte {
	cdb := make([]byte, 6)
	cdb[0] = byte(scsiproto.OpStartStopUnit)
	if start {
		cdb[4] |= 0x01
	}
	if load {
		cdb[4] |= 0x02
	}
	return cdb
}

func TestStartStopUnitStopRequestsDaemonShutdown(t *testing.T) {
	h := New(0, 0)
	ctx := &device.Context{CDB: startStopCDB(false, false)}
	if _, err := h.Dispatch(scsiproto.OpStartStopUnit, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShutdownRequest != device.ShutdownRequestStopDaemon {
		t.Fatalf("got %v, want ShutdownRequestStopDaemon", ctx.ShutdownRequest)
	}
}

func TestStartStopUnitEjectRequestsHostStop(t *testing.T) {
	h := New(0, 0)
	ctx := &device.Context{CDB: startStopCDB(false, true)}
	if _, err := h.Dispatch(scsiproto.OpStartStopUnit, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShutdownRequest != device.ShutdownRequestStopHost {
		t.Fatalf("got %v, want ShutdownRequestStopHost", ctx.ShutdownRequest)
	}
}

func TestStartStopUnitLoadRequestsHostRestart(t *testing.T) {
	h := New(0, 0)
	ctx := &device.Context{CDB: startStopCDB(true, true)}
	if _, err := h.Dispatch(scsiproto.OpStartStopUnit, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShutdownRequest != device.ShutdownRequestRestartHost {
		t.Fatalf("got %v, want ShutdownRequestRestartHost", ctx.ShutdownRequest)
	}
}

func TestStartStopUnitStartWithoutLoadIsRejected(t *testing.T) {
	h := New(0, 0)
	ctx := &device.Context{CDB: startStopCDB(true, false)}
	if _, err := h.Dispatch(scsiproto.OpStartStopUnit, ctx); err == nil {
		t.Fatal("expected an error for start without load")
	}
}

func TestHostServicesDeviceTypeCode(t *testing.T) {
	h := New(0, 0)
	if h.DeviceTypeCode() != scsiproto.DeviceHostServices {
		t.Fatalf("got %v, want DeviceHostServices", h.DeviceTypeCode())
	}
}
