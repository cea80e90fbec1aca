// Package printer implements the SCSI printer pseudo-device (device type
// 0x02): a PrimaryDevice-only LU with no backing image file that buffers
// PRINT data in memory until SYNCHRONIZE BUFFER, grounded on
// original_source/cpp/devices/printer.cpp. The original shells out to a
// configurable print command ("lp -oraw %f"); that external-process
// invocation is not carried forward here — SYNCHRONIZE BUFFER clears the
// buffer and counts the job instead of executing anything, avoiding a
// command-injection surface for a feature spec.md never asked this
// emulation to drive real print hardware for.
package printer

import (
	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

const maxBufferedBytes = 4096 * 256

// Printer is the SCLP pseudo-device. Unlike network adapter and host
// services, printer is not in the original's unique-device-type set:
// attaching multiple printer LUNs (one per print command) is expected.
type Printer struct {
	*device.PrimaryDevice

	buffer       []byte
	PrintedCount int
	ErrorCount   int
}

func New(id, lun int) *Printer {
	d := device.NewDevice(id, lun, scsiproto.DevicePrinter)
	d.Identity.Set("S2PGO   ", "SCSI PRINTER    ", "1.0 ", false)
	d.Flags.Ready = true
	p := device.NewPrimaryDevice(d)
	pr := &Printer{PrimaryDevice: p}
	pr.AddCommand(scsiproto.OpPrint, pr.print)
	pr.AddCommand(scsiproto.OpSynchronizeBuffer, pr.synchronizeBuffer)
	pr.AddCommand(scsiproto.OpStopPrint, pr.stopPrint)
	return pr
}

// print appends DataOut to the in-progress print job, per printer.cpp's
// Print(): a 3-byte transfer length at CDB[2:5], rejected if it would
// overflow the buffer.
func (pr *Printer) print(d *device.PrimaryDevice, ctx *device.Context) error {
	if len(ctx.CDB) < 5 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	length := int(ctx.CDB[2])<<16 | int(ctx.CDB[3])<<8 | int(ctx.CDB[4])
	if length <= 0 || len(pr.buffer)+length > maxBufferedBytes {
		pr.ErrorCount++
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	if len(ctx.DataOut) < length {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	pr.buffer = append(pr.buffer, ctx.DataOut[:length]...)
	return nil
}

// synchronizeBuffer triggers the print job, per printer.cpp's
// SynchronizeBuffer(): AscPrinterNothingToPrint if nothing was buffered.
func (pr *Printer) synchronizeBuffer(d *device.PrimaryDevice, ctx *device.Context) error {
	if len(pr.buffer) == 0 {
		pr.ErrorCount++
		return scsiproto.NewException(scsiproto.AbortedCommand, scsiproto.AscPrinterNothingToPrint)
	}
	pr.buffer = pr.buffer[:0]
	pr.PrintedCount++
	return nil
}

// stopPrint discards a job before SYNCHRONIZE BUFFER is sent.
func (pr *Printer) stopPrint(d *device.PrimaryDevice, ctx *device.Context) error {
	pr.buffer = pr.buffer[:0]
	return nil
}
