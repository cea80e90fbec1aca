// Package device implements the common emulated-unit state (C2) and the
// primary-command dispatch layer built on top of it (C3), grounded on the
// teacher's pkg/scsi device/opcode tables but carrying real semantics where
// the teacher left stubs.
package device

import (
	"sync"

	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// Identity holds the immutable-after-first-assignment INQUIRY strings.
type Identity struct {
	Vendor   string
	Product  string
	Revision string
	set      bool
}

// Set assigns the identity strings once; subsequent calls are a no-op
// unless override is true, matching spec.md §3's "immutable after first
// assignment unless the caller sets an explicit override flag".
func (id *Identity) Set(vendor, product, revision string, override bool) {
	if id.set && !override {
		return
	}
	id.Vendor, id.Product, id.Revision = vendor, product, revision
	id.set = true
}

// Flags are the boolean device attributes from spec.md §3. All default
// false.
type Flags struct {
	Ready          bool
	ReadOnly       bool
	Protectable    bool
	WriteProtected bool
	Stoppable      bool
	Stopped        bool
	Removable      bool
	Removed        bool
	Lockable       bool
	Locked         bool
	Attn           bool
	Reset          bool
}

// SenseState is the per-device current sense triple plus the auxiliary
// flags REQUEST SENSE reports alongside it.
type SenseState struct {
	Triple      scsiproto.SenseTriple
	Valid       bool
	Filemark    bool
	Eom         bool
	Ili         bool
	Information uint32
}

// Clear resets sense to NO SENSE, as happens on successful completion of
// any non-REQUEST-SENSE command.
func (s *SenseState) Clear() {
	*s = SenseState{}
}

// SetFromException latches an Exception as the device's current sense
// state, ready for the next REQUEST SENSE.
func (s *SenseState) SetFromException(e *scsiproto.Exception, information uint32, valid bool) {
	s.Triple = scsiproto.TripleFromException(e)
	s.Information = information
	s.Valid = valid
}

// ReservationState tracks which initiator, if any, holds the reservation.
// -1 means unreserved, matching spec.md's reserving_initiator domain.
type ReservationState struct {
	ReservingInitiator int
}

const Unreserved = -1

func (r *ReservationState) IsReservedBy(initiatorID int) bool {
	return r.ReservingInitiator != Unreserved && r.ReservingInitiator == initiatorID
}

func (r *ReservationState) IsReserved() bool {
	return r.ReservingInitiator != Unreserved
}

// Device is the common state shared by every emulated unit, composed into
// PrimaryDevice rather than inherited, per spec.md §9's "subclassing is
// replaced by composition" design note.
type Device struct {
	mu sync.Mutex

	ID  int // SCSI target ID, 0..7
	Lun int // logical unit number, 0..31

	Identity   Identity
	Type       scsiproto.DeviceType
	ScsiLevel  byte
	Flags      Flags
	Sense      SenseState
	Reserve    ReservationState
	Params     map[string]string
	MediumChangePending bool

	Filename string // currently bound image file, "" if none
}

func NewDevice(id, lun int, devType scsiproto.DeviceType) *Device {
	return &Device{
		ID:        id,
		Lun:       lun,
		Type:      devType,
		ScsiLevel: scsiproto.DefaultScsiLevel,
		Params:    map[string]string{},
		Reserve:   ReservationState{ReservingInitiator: Unreserved},
	}
}

// Lock/Unlock expose a per-device mutex. No code in this repository takes
// it: the controller and the executor serialize through their own mutexes.
func (d *Device) Lock()   { d.mu.Lock() }
func (d *Device) Unlock() { d.mu.Unlock() }

// Reset clears locked/attn/reset and the reservation, and blanks sense to
// NO SENSE, matching PrimaryDevice.reset() in spec.md §4.2.
func (d *Device) Reset() {
	d.Flags.Locked = false
	d.Flags.Attn = false
	d.Flags.Reset = false
	d.Reserve.ReservingInitiator = Unreserved
	d.Sense.Clear()
}

// ArmMediumChange marks that the next non-INQUIRY/REQUEST-SENSE command
// must be rejected with a unit-attention, per spec.md §4.4/§8 property 8.
func (d *Device) ArmMediumChange() {
	d.MediumChangePending = true
}
