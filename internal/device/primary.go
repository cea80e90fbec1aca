package device

import (
	"github.com/s2p-go/s2pd/internal/binutil"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// Context carries everything a command handler needs: the CDB, the
// initiator that issued it, and the data buffers the controller wires to
// the phase machine. Handlers fill DataIn for data-in phases and read
// DataOut for data-out phases.
type Context struct {
	CDB              []byte
	InitiatorID      int
	AllocationLength int
	DataIn           []byte
	DataOut          []byte

	// SiblingLuns lists the populated LUNs on the same target, for REPORT
	// LUNS; populated by the controller before dispatch.
	SiblingLuns []int

	// ShutdownRequest lets a handler (internal/hostservices' START/STOP
	// UNIT) signal the daemon-level action the controller should schedule
	// after this command completes, mirroring the original's
	// Controller::ScheduleShutdown call from within HostServices.
	ShutdownRequest ShutdownRequest
}

// ShutdownRequest is the device-side half of the shutdown signal; the
// controller package translates it to its own ShutdownMode after dispatch,
// keeping device free of a dependency on controller.
type ShutdownRequest int

const (
	ShutdownRequestNone ShutdownRequest = iota
	ShutdownRequestStopDaemon
	ShutdownRequestStopHost
	ShutdownRequestRestartHost
)

// Handler executes one SCSI command against a device. Returning a
// *scsiproto.Exception causes the controller to answer CHECK CONDITION and
// latch sense; returning nil answers GOOD.
type Handler func(d *PrimaryDevice, ctx *Context) error

// reservationExempt lists the opcodes allowed through even when another
// initiator holds the reservation, per spec.md §4.2.
var reservationExempt = map[scsiproto.Opcode]bool{
	scsiproto.OpInquiry:      true,
	scsiproto.OpRequestSense: true,
	scsiproto.OpRelease6:     true,
}

// PrimaryDevice adds the 256-slot dispatch table to Device. Type-specific
// device packages (storage, disk) extend the table via AddCommand rather
// than subclassing, per spec.md §9.
type PrimaryDevice struct {
	*Device
	ops [256]Handler
}

func NewPrimaryDevice(d *Device) *PrimaryDevice {
	p := &PrimaryDevice{Device: d}
	p.installBaseCommands()
	return p
}

func (p *PrimaryDevice) installBaseCommands() {
	p.AddCommand(scsiproto.OpInquiry, spcInquiry)
	p.AddCommand(scsiproto.OpTestUnitReady, spcTestUnitReady)
	p.AddCommand(scsiproto.OpRequestSense, spcRequestSense)
	p.AddCommand(scsiproto.OpReserve6, spcReserve)
	p.AddCommand(scsiproto.OpRelease6, spcRelease)
	p.AddCommand(scsiproto.OpSendDiagnostic, spcSendDiagnostic)
	p.AddCommand(scsiproto.OpReportLuns, spcReportLuns)
}

// AddCommand registers or overrides a handler, the composition-based
// analogue of the teacher's SCSIDeviceOps[opcode] = NewSCSIDeviceOperation.
func (p *PrimaryDevice) AddCommand(op scsiproto.Opcode, h Handler) {
	p.ops[byte(op)] = h
}

// LunNumber exposes the LUN for callers that only hold the PrimaryDevice
// interface (Device.Lun is a field, not a method, so it can't satisfy an
// interface directly).
func (p *PrimaryDevice) LunNumber() int { return p.Device.Lun }

// DeviceTypeCode exposes the peripheral device type for callers that only
// hold a controller.LU interface value, the same way LunNumber exposes Lun.
// Used by the executor's per-type attach uniqueness check (network
// adapter, host services), which applies regardless of whether the LU is
// storage-backed.
func (p *PrimaryDevice) DeviceTypeCode() scsiproto.DeviceType { return p.Device.Type }

// LatchException records a command-handler exception as the device's
// current sense state, the controller-side half of the Exception control
// flow from spec.md §7/§9.
func (p *PrimaryDevice) LatchException(ex *scsiproto.Exception) {
	p.Sense.SetFromException(ex, 0, false)
}

// CheckReservation implements spec.md §4.2's check_reservation predicate.
func (p *PrimaryDevice) CheckReservation(op scsiproto.Opcode, initiatorID int) bool {
	if !p.Reserve.IsReserved() {
		return true
	}
	if p.Reserve.IsReservedBy(initiatorID) {
		return true
	}
	return reservationExempt[op]
}

// Dispatch looks up and invokes the handler for op, enforcing the
// reservation rule first. It returns (conflict, exception): conflict means
// the caller must answer RESERVATION CONFLICT status without entering data
// phase; exception (if non-nil) is latched as sense and answered as CHECK
// CONDITION.
func (p *PrimaryDevice) Dispatch(op scsiproto.Opcode, ctx *Context) (conflict bool, err error) {
	if !p.CheckReservation(op, ctx.InitiatorID) {
		return true, nil
	}
	if err := checkMediumChange(p, op); err != nil {
		return false, err
	}
	h := p.ops[byte(op)]
	if h == nil {
		return false, scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidOpCode)
	}
	if ex := h(p, ctx); ex != nil {
		return false, ex
	}
	return false, nil
}

// --- base SPC handlers, grounded on the teacher's pkg/scsi/spc.go names
// but with real semantics instead of stubs. ---

func spcTestUnitReady(d *PrimaryDevice, ctx *Context) error {
	return checkMediumChange(d, scsiproto.OpTestUnitReady)
}

func spcReserve(d *PrimaryDevice, ctx *Context) error {
	if d.Reserve.IsReserved() && !d.Reserve.IsReservedBy(ctx.InitiatorID) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	d.Reserve.ReservingInitiator = ctx.InitiatorID
	return nil
}

func spcRelease(d *PrimaryDevice, ctx *Context) error {
	if d.Reserve.ReservingInitiator == ctx.InitiatorID {
		d.Reserve.ReservingInitiator = Unreserved
	}
	return nil
}

func spcSendDiagnostic(d *PrimaryDevice, ctx *Context) error {
	return nil
}

// checkMediumChange implements spec.md §4.4/§8's medium-change latch: the
// next command that is not INQUIRY or REQUEST SENSE after an insert/eject
// fails once with (unit_attention, not_ready_to_ready_change).
func checkMediumChange(d *PrimaryDevice, op scsiproto.Opcode) error {
	if op == scsiproto.OpInquiry || op == scsiproto.OpRequestSense {
		return nil
	}
	if d.MediumChangePending {
		d.MediumChangePending = false
		return scsiproto.NewException(scsiproto.UnitAttention, scsiproto.AscNotReadyToReadyChange)
	}
	return nil
}

// spcInquiry builds a 96-byte INQUIRY response (the standard 36 bytes
// followed by a zero-filled additional area; additional length 91),
// truncated to AllocationLength only at the very end, matching spec.md §8
// property 1.
func spcInquiry(d *PrimaryDevice, ctx *Context) error {
	if len(ctx.CDB) >= 2 && ctx.CDB[1]&0x01 != 0 { // EVPD
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	if len(ctx.CDB) >= 2 && ctx.CDB[1]&0x02 != 0 { // obsolete CmdDt
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}

	buf := make([]byte, 96)
	buf[0] = byte(d.Type)
	if d.Flags.Removable {
		buf[1] = 0x80
	}
	buf[2] = d.ScsiLevel
	buf[3] = scsiproto.ResponseDataFormat
	buf[4] = byte(len(buf) - 5)
	buf[7] = 0x00 // no LINKED/SYNC support in this emulation
	copy(buf[8:16], binutil.PadString(d.Identity.Vendor, 8))
	copy(buf[16:32], binutil.PadString(d.Identity.Product, 16))
	copy(buf[32:36], binutil.PadString(d.Identity.Revision, 4))

	n := ctx.AllocationLength
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	if n > 255 {
		n = 255
	}
	ctx.DataIn = buf[:n]
	return nil
}

// InquiryUnsupportedLun answers INQUIRY for an unpopulated LUN with the
// peripheral-qualifier 0x7F form required by spec.md §4.7.
func InquiryUnsupportedLun(ctx *Context) {
	buf := make([]byte, 36)
	buf[0] = scsiproto.PeripheralQualifierNotSupported
	buf[2] = scsiproto.DefaultScsiLevel
	buf[3] = scsiproto.ResponseDataFormat
	buf[4] = byte(len(buf) - 5)
	n := ctx.AllocationLength
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	ctx.DataIn = buf[:n]
}

// spcRequestSense always succeeds and clears sense afterward, per spec.md
// §4.2 and the idempotent-clearing property in §8.
func spcRequestSense(d *PrimaryDevice, ctx *Context) error {
	s := d.Sense
	size := 14
	if s.Valid {
		size = 18
	}
	buf := scsiproto.BuildSenseData(s.Triple, s.Information, s.Valid, false)
	if len(buf) > size {
		buf = buf[:size]
	}
	n := ctx.AllocationLength
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	ctx.DataIn = buf[:n]
	d.Sense.Clear()
	return nil
}

// spcReportLuns lists the populated LUNs on this target, formatted per SPC:
// an 8-byte header (LUN list length, 4 reserved) then 8 bytes per LUN.
func spcReportLuns(d *PrimaryDevice, ctx *Context) error {
	luns := ctx.SiblingLuns
	buf := make([]byte, 8+8*len(luns))
	binutil.PutUint32(buf[0:4], uint32(8*len(luns)))
	for i, l := range luns {
		off := 8 + 8*i
		buf[off] = byte(l)
	}
	n := ctx.AllocationLength
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	ctx.DataIn = buf[:n]
	return nil
}
