// Package controller implements AbstractController / ScsiController (C8)
// — the per-target phase state machine and its 32-LUN table — and
// ControllerFactory (C9). The teacher has no parallel-SCSI bus controller
// (gotgt speaks iSCSI), so the phase machine is built fresh, loosely
// grounded on pkg/port/iscsit/conn.go's CONN_STATE_* transitions and
// buildRespPackage's per-state response construction, and on iscsid.go's
// rxHandler state loop for the overall shape of "receive, dispatch,
// respond, return to idle".
package controller

import (
	"sync"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// Phase is one of the target-side bus states from spec.md §4.7.
type Phase int

const (
	PhaseBusFree Phase = iota
	PhaseArbitration
	PhaseSelection
	PhaseCommand
	PhaseDataIn
	PhaseDataOut
	PhaseStatus
	PhaseMsgIn
	PhaseMsgOut
	PhaseReservation
)

func (p Phase) String() string {
	switch p {
	case PhaseBusFree:
		return "bus_free"
	case PhaseArbitration:
		return "arbitration"
	case PhaseSelection:
		return "selection"
	case PhaseCommand:
		return "command"
	case PhaseDataIn:
		return "data_in"
	case PhaseDataOut:
		return "data_out"
	case PhaseStatus:
		return "status"
	case PhaseMsgIn:
		return "msg_in"
	case PhaseMsgOut:
		return "msg_out"
	case PhaseReservation:
		return "reservation"
	default:
		return "unknown"
	}
}

// ShutdownMode is the coordination signal schedule_shutdown parks for the
// daemon loop, per spec.md §4.7.
type ShutdownMode int

const (
	ShutdownNone ShutdownMode = iota
	ShutdownStopDaemon
	ShutdownStopHost
	ShutdownRestartHost
)

const lunCount = 32

// LU is the interface a populated LUN slot must satisfy: every concrete
// device stack (internal/disk.Disk and friends) satisfies it by field and
// method promotion from device.PrimaryDevice.
type LU interface {
	Dispatch(op scsiproto.Opcode, ctx *device.Context) (conflict bool, err error)
	LunNumber() int
	LatchException(ex *scsiproto.Exception)
}

// Result is the outcome of running one command through the phase machine.
type Result struct {
	Status  scsiproto.Status
	DataIn  []byte
	Phase   Phase
	Shutdown ShutdownMode
}

// Controller is the per-target-ID phase state machine and LUN table, per
// spec.md §3/§4.7 (C8).
type Controller struct {
	mu sync.Mutex

	ID    int
	phase Phase
	luns  [lunCount]LU

	selectedInitiator int
	pendingAtn        bool
	shutdown          ShutdownMode
}

func New(id int) *Controller {
	return &Controller{ID: id, phase: PhaseBusFree}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// AttachLUN installs lu at the given LUN slot. Replacement of an occupied
// slot is the caller's responsibility to avoid (the executor enforces
// "no existing device at (id, lun)").
func (c *Controller) AttachLUN(lun int, lu LU) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.luns[lun] = lu
}

func (c *Controller) DetachLUN(lun int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.luns[lun] = nil
}

func (c *Controller) LUN(lun int) LU {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lun < 0 || lun >= lunCount {
		return nil
	}
	return c.luns[lun]
}

// PopulatedLUNs lists occupied LUN numbers in ascending order, used by
// REPORT LUNS and the LUN-0 invariant check.
func (c *Controller) PopulatedLUNs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for i, lu := range c.luns {
		if lu != nil {
			out = append(out, i)
		}
	}
	return out
}

func (c *Controller) HasLUN0() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.luns[0] != nil
}

func (c *Controller) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lu := range c.luns {
		if lu != nil {
			return false
		}
	}
	return true
}

// ExtractLUN implements spec.md §4.7's LUN extraction rule: prefer the
// IDENTIFY message, fall back to CDB byte 1 bits 5..7 for SASI-style
// selection with no IDENTIFY.
func ExtractLUN(identify *byte, cdb []byte) int {
	if identify != nil && *identify&0x80 != 0 {
		return int(*identify & 0x1f)
	}
	if len(cdb) > 1 {
		return int(cdb[1]>>5) & 0x07
	}
	return 0
}

// RaiseATN defers a transition to msg_out at the next message-byte
// boundary, per spec.md §4.7.
func (c *Controller) RaiseATN() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingAtn = true
}

// Reset implements the "any state --RST--> bus_free; reset all devices"
// transition from spec.md §4.7.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseBusFree
	c.pendingAtn = false
	for _, lu := range c.luns {
		if d, ok := lu.(interface{ Reset() }); ok {
			d.Reset()
		}
	}
}

// ScheduleShutdown parks mode for the daemon to consume after the current
// command completes, per spec.md §4.7.
func (c *Controller) ScheduleShutdown(mode ShutdownMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = mode
}

func (c *Controller) PendingShutdown() ShutdownMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// Execute runs one command through the full phase sequence: selection,
// command, data, status, msg_in, and back to bus_free, per spec.md §4.7.
// There is no real parallel-SCSI bus in this emulation's test/loopback
// path, so the transitions are driven synchronously rather than by
// REQ/ACK edges — internal/bus is what a real GPIO-backed Bus
// implementation would drive instead.
func (c *Controller) Execute(initiatorID int, identify *byte, cdb []byte, dataOut []byte) Result {
	c.mu.Lock()
	c.phase = PhaseSelection
	c.selectedInitiator = initiatorID
	c.phase = PhaseCommand
	c.mu.Unlock()

	op := scsiproto.Opcode(cdb[0])
	lun := ExtractLUN(identify, cdb)

	res := Result{Phase: PhaseStatus}

	c.mu.Lock()
	lu := c.luns[lun]
	c.mu.Unlock()

	if lu == nil {
		if op == scsiproto.OpInquiry {
			ctx := &device.Context{CDB: cdb, InitiatorID: initiatorID, AllocationLength: allocationLength(cdb)}
			device.InquiryUnsupportedLun(ctx)
			res.Status = scsiproto.StatusGood
			res.DataIn = ctx.DataIn
		} else {
			c.mu.Lock()
			lun0 := c.luns[0]
			c.mu.Unlock()
			if lun0 != nil {
				lun0.LatchException(scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscLogicalUnitNotSupported))
			}
			res.Status = scsiproto.StatusCheckCondition
		}
		c.finishToBusFree()
		return res
	}

	ctx := &device.Context{
		CDB:              cdb,
		InitiatorID:      initiatorID,
		AllocationLength: allocationLength(cdb),
		DataOut:          dataOut,
		SiblingLuns:      c.PopulatedLUNs(),
	}

	conflict, err := lu.Dispatch(op, ctx)
	switch {
	case conflict:
		res.Status = scsiproto.StatusReservationConflict
	case err != nil:
		if ex, ok := err.(*scsiproto.Exception); ok {
			lu.LatchException(ex)
		}
		res.Status = scsiproto.StatusCheckCondition
	default:
		if op != scsiproto.OpRequestSense {
			lu.LatchException(scsiproto.NewException(scsiproto.NoSense, scsiproto.AscNoAdditionalSense))
		}
		res.Status = scsiproto.StatusGood
		res.DataIn = ctx.DataIn
	}

	if res.Status == scsiproto.StatusGood {
		if mode := shutdownModeFor(ctx.ShutdownRequest); mode != ShutdownNone {
			c.ScheduleShutdown(mode)
		}
	}

	c.finishToBusFree()
	res.Shutdown = c.PendingShutdown()
	return res
}

// shutdownModeFor translates a device.ShutdownRequest into this package's
// ShutdownMode; the two enums are kept in the same order deliberately.
func shutdownModeFor(r device.ShutdownRequest) ShutdownMode {
	switch r {
	case device.ShutdownRequestStopDaemon:
		return ShutdownStopDaemon
	case device.ShutdownRequestStopHost:
		return ShutdownStopHost
	case device.ShutdownRequestRestartHost:
		return ShutdownRestartHost
	default:
		return ShutdownNone
	}
}

func (c *Controller) finishToBusFree() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseStatus
	c.phase = PhaseMsgIn
	c.phase = PhaseBusFree
	c.selectedInitiator = -1
}

// allocationLength reads the allocation-length field out of a CDB,
// defaulting to "as much as the response needs" (-1) for commands that
// don't carry one. This is distinct from the group-0 READ(6)/WRITE(6)
// transfer-length field, where 0 means 256 blocks — that convention is
// parsed separately by internal/disk's extractLBALen and must not leak
// into INQUIRY/REQUEST SENSE/REPORT LUNS, whose allocation length of 0
// legitimately means "return zero bytes" per spec.md §8 property 1.
func allocationLength(cdb []byte) int {
	if len(cdb) == 0 {
		return -1
	}
	op := scsiproto.Opcode(cdb[0])
	switch scsiproto.CDBGroup(op) {
	case 0:
		if len(cdb) > 4 {
			return int(cdb[4])
		}
	case 1, 2:
		if len(cdb) > 8 {
			return int(cdb[7])<<8 | int(cdb[8])
		}
	case 5:
		if len(cdb) > 9 {
			return int(cdb[6])<<24 | int(cdb[7])<<16 | int(cdb[8])<<8 | int(cdb[9])
		}
	}
	return -1
}
