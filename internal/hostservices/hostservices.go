// Package hostservices implements the host-services pseudo-device (device
// type 0x0c): a PrimaryDevice-only LU with no backing image file, whose
// START/STOP UNIT maps to a daemon shutdown/restart request instead of a
// medium operation. Grounded on original_source/cpp/devices/host_services.cpp's
// HostServices::StartStopUnit; the remote command-execution half of that
// file (ExecuteOperation/ReceiveOperationResults) depends on the protobuf
// wire codec spec.md explicitly puts out of scope and is not carried
// forward.
package hostservices

import (
	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// HostServices is the SCHS pseudo-device: at most one may be attached
// target-table-wide, per the original's UNIQUE_DEVICE_TYPES set
// (command/command_executor.h), enforced by internal/executor's attach path.
type HostServices struct {
	*device.PrimaryDevice
}

func New(id, lun int) *HostServices {
	d := device.NewDevice(id, lun, scsiproto.DeviceHostServices)
	d.Identity.Set("S2PGO   ", "Host Services   ", "1.0 ", false)
	d.Flags.Ready = true
	p := device.NewPrimaryDevice(d)
	h := &HostServices{PrimaryDevice: p}
	h.AddCommand(scsiproto.OpStartStopUnit, h.startStopUnit)
	return h
}

// startStopUnit implements the three documented combinations from
// host_services.cpp: STOP shuts the daemon down, EJECT (!start && load)
// shuts the host down, LOAD (start && load) restarts the host. start
// without load has no defined meaning and is rejected.
func (h *HostServices) startStopUnit(d *device.PrimaryDevice, ctx *device.Context) error {
	if len(ctx.CDB) < 5 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	start := ctx.CDB[4]&0x01 != 0
	load := ctx.CDB[4]&0x02 != 0

	switch {
	case !start && !load:
		ctx.ShutdownRequest = device.ShutdownRequestStopDaemon
	case !start && load:
		ctx.ShutdownRequest = device.ShutdownRequestStopHost
	case start && load:
		ctx.ShutdownRequest = device.ShutdownRequestRestartHost
	default:
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	return nil
}
