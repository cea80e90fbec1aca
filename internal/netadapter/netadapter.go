// Package netadapter implements the DaynaPort SCSI/Link network-adapter
// pseudo-device (device type 0x09): a PrimaryDevice-only LU with no
// backing image file, grounded on
// original_source/cpp/devices/daynaport.cpp. The original bridges a host
// TAP interface to GET/SEND MESSAGE so a real initiator driver can use it
// as a network card; that packet I/O needs a privileged host network
// interface this emulation has no equivalent of (the same class of
// hardware dependency spec.md's "no physical GPIO bus driver" non-goal
// already excludes for the bus side), so GET MESSAGE always reports "no
// packet available" and SEND MESSAGE/RETRIEVE STATS/SET IFACE MODE/SET
// MCAST ADDR/ENABLE INTERFACE succeed as no-ops. What is carried forward
// is the part every caller of this emulation actually needs: a LU that
// attaches, responds to INQUIRY/TEST UNIT READY as network adapter
// hardware, and is subject to the same one-per-target-table uniqueness
// rule the original enforces (command/command_executor.h's
// UNIQUE_DEVICE_TYPES).
package netadapter

import (
	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

const statsBlockSize = 18

// NetworkAdapter is the SCDP pseudo-device.
type NetworkAdapter struct {
	*device.PrimaryDevice
}

func New(id, lun int) *NetworkAdapter {
	d := device.NewDevice(id, lun, scsiproto.DeviceNetworkAdapter)
	d.Identity.Set("Dayna   ", "SCSI/Link       ", "1.4a", false)
	d.Flags.Ready = true
	p := device.NewPrimaryDevice(d)
	n := &NetworkAdapter{PrimaryDevice: p}
	n.AddCommand(scsiproto.OpRead6, n.getMessage6)
	n.AddCommand(scsiproto.OpWrite6, n.sendMessage6)
	n.AddCommand(scsiproto.OpRetrieveStats, n.retrieveStats)
	n.AddCommand(scsiproto.OpSetIfaceMode, noop)
	n.AddCommand(scsiproto.OpSetMcastAddr, noop)
	n.AddCommand(scsiproto.OpEnableInterface, noop)
	return n
}

// getMessage6 answers with a zero-length packet: a 2-byte big-endian
// length field of 0 and no payload, the SLINKCMD "no packet waiting"
// response.
func (n *NetworkAdapter) getMessage6(d *device.PrimaryDevice, ctx *device.Context) error {
	ctx.DataIn = []byte{0x00, 0x00}
	return nil
}

// sendMessage6 accepts and discards an outbound packet.
func (n *NetworkAdapter) sendMessage6(d *device.PrimaryDevice, ctx *device.Context) error {
	return nil
}

// retrieveStats reports an all-zero statistics block (frames sent/received,
// errors, MAC address) rather than real interface counters.
func (n *NetworkAdapter) retrieveStats(d *device.PrimaryDevice, ctx *device.Context) error {
	buf := make([]byte, statsBlockSize)
	if al := ctx.AllocationLength; al >= 0 && al < len(buf) {
		buf = buf[:al]
	}
	ctx.DataIn = buf
	return nil
}

func noop(d *device.PrimaryDevice, ctx *device.Context) error { return nil }
