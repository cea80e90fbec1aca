package executor

import (
	"fmt"

	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/scsiproto"
	"github.com/s2p-go/s2pd/internal/storage"
)

// typer is satisfied by every concrete device stack through
// device.PrimaryDevice.DeviceTypeCode, letting the executor inspect a bare
// controller.LU's peripheral device type without a storage.StorageDevice.
type typer interface {
	DeviceTypeCode() scsiproto.DeviceType
}

// uniqueDeviceTypes mirrors the original's UNIQUE_DEVICE_TYPES
// (command/command_executor.h): at most one instance of each may be
// attached across the whole target table. Printer is deliberately not in
// this set, matching the original — multiple printer LUNs (one per print
// command) are expected.
var uniqueDeviceTypes = map[scsiproto.DeviceType]bool{
	scsiproto.DeviceNetworkAdapter: true,
	scsiproto.DeviceHostServices:   true,
}

// checkUniqueDeviceType implements the original's CreateDevice uniqueness
// check: if lu's type is one of uniqueDeviceTypes, no other (id, lun) may
// already hold a device of that same type.
func (e *Executor) checkUniqueDeviceType(lu controller.LU) error {
	t, ok := lu.(typer)
	if !ok || !uniqueDeviceTypes[t.DeviceTypeCode()] {
		return nil
	}
	for _, id := range e.factory.IDs() {
		ctrl, ok := e.factory.Get(id)
		if !ok {
			continue
		}
		for _, lun := range ctrl.PopulatedLUNs() {
			other, ok := ctrl.LUN(lun).(typer)
			if ok && other.DeviceTypeCode() == t.DeviceTypeCode() {
				return fmt.Errorf("a %s device is already attached", t.DeviceTypeCode())
			}
		}
	}
	return nil
}

// validate runs the per-operation checks from spec.md §4.8 without
// mutating the controller table; dryRun is always true for the validation
// pass and kept as a parameter for symmetry with apply's error messages.
func (e *Executor) validate(c Command, dryRun bool) error {
	switch c.Operation {
	case OpAttach:
		return e.validateAttach(c)
	case OpDetach:
		return e.validateDetach(c)
	case OpInsert:
		return e.validateInsert(c)
	case OpEject:
		return e.validateExistingDevice(c)
	case OpStart, OpStop:
		return e.validateStoppable(c)
	case OpProtect, OpUnprotect:
		return e.validateProtectable(c)
	default:
		return fmt.Errorf("unknown device operation %q", c.Operation)
	}
}

func (e *Executor) lookup(id, lun int) (*storage.StorageDevice, bool) {
	ctrl, ok := e.factory.Get(id)
	if !ok {
		return nil, false
	}
	lu := ctrl.LUN(lun)
	if lu == nil {
		return nil, false
	}
	sd, ok := lu.(unwrapper)
	if !ok {
		return nil, true // populated, but not a storage-backed device (no further checks apply)
	}
	return sd.Unwrap(), true
}

func (e *Executor) validateAttach(c Command) error {
	if c.Lun < 0 || c.Lun >= maxLUN {
		return fmt.Errorf("LUN %d out of range", c.Lun)
	}
	if e.reserved[c.ID] {
		return fmt.Errorf("target id %d is reserved", c.ID)
	}
	if ctrl, ok := e.factory.Get(c.ID); ok && ctrl.LUN(c.Lun) != nil {
		return fmt.Errorf("device already exists at (%d,%d)", c.ID, c.Lun)
	}
	if c.Filename != "" {
		id, lun := storage.GetIDsForReservedFile(c.Filename)
		if id != -1 {
			_ = lun
			return storage.ErrImageInUse
		}
	}
	return nil
}

func (e *Executor) validateDetach(c Command) error {
	_, ok := e.lookup(c.ID, c.Lun)
	if !ok {
		return fmt.Errorf("no device at (%d,%d)", c.ID, c.Lun)
	}
	if c.Lun == 0 {
		ctrl, _ := e.factory.Get(c.ID)
		for _, l := range ctrl.PopulatedLUNs() {
			if l != 0 {
				return fmt.Errorf("LUN 0 must be the last LUN detached from target %d", c.ID)
			}
		}
	}
	return nil
}

func (e *Executor) validateInsert(c Command) error {
	sd, ok := e.lookup(c.ID, c.Lun)
	if !ok {
		return fmt.Errorf("no device at (%d,%d)", c.ID, c.Lun)
	}
	if !sd.Flags.Removable {
		return fmt.Errorf("device at (%d,%d) is not removable", c.ID, c.Lun)
	}
	if !sd.Flags.Removed {
		return fmt.Errorf("device at (%d,%d) already has medium inserted", c.ID, c.Lun)
	}
	return nil
}

func (e *Executor) validateExistingDevice(c Command) error {
	_, ok := e.lookup(c.ID, c.Lun)
	if !ok {
		return fmt.Errorf("no device at (%d,%d)", c.ID, c.Lun)
	}
	return nil
}

func (e *Executor) validateStoppable(c Command) error {
	sd, ok := e.lookup(c.ID, c.Lun)
	if !ok {
		return fmt.Errorf("no device at (%d,%d)", c.ID, c.Lun)
	}
	if !sd.Flags.Stoppable {
		return fmt.Errorf("device at (%d,%d) is not stoppable", c.ID, c.Lun)
	}
	return nil
}

func (e *Executor) validateProtectable(c Command) error {
	sd, ok := e.lookup(c.ID, c.Lun)
	if !ok {
		return fmt.Errorf("no device at (%d,%d)", c.ID, c.Lun)
	}
	if !sd.Flags.Protectable || !sd.Flags.Ready {
		return fmt.Errorf("device at (%d,%d) is not protectable/ready", c.ID, c.Lun)
	}
	return nil
}

// apply performs the real-run mutation after every command in the batch
// has passed validate, per spec.md §4.8.
func (e *Executor) apply(c Command) error {
	switch c.Operation {
	case OpAttach:
		return e.applyAttach(c)
	case OpDetach:
		ctrl, _ := e.factory.Get(c.ID)
		if sd, ok := e.lookup(c.ID, c.Lun); ok && sd != nil {
			sd.UnreserveFile()
		}
		ctrl.DetachLUN(c.Lun)
		e.factory.RemoveIfEmpty(c.ID)
		return nil
	case OpInsert:
		sd, _ := e.lookup(c.ID, c.Lun)
		sd.Filename = c.Filename
		if err := sd.ValidateFile(c.Filename); err != nil {
			return err
		}
		sd.Flags.Removed = false
		sd.ArmMediumChange()
		return nil
	case OpEject:
		sd, _ := e.lookup(c.ID, c.Lun)
		if sd.Flags.Locked {
			return fmt.Errorf("device at (%d,%d) is locked", c.ID, c.Lun)
		}
		if sd.FlushFunc != nil {
			if err := sd.FlushFunc(); err != nil {
				return err
			}
		}
		sd.UnreserveFile()
		sd.Flags.Removed = true
		sd.Flags.Ready = false
		sd.ArmMediumChange()
		return nil
	case OpStart:
		sd, _ := e.lookup(c.ID, c.Lun)
		sd.Flags.Stopped = false
		return nil
	case OpStop:
		sd, _ := e.lookup(c.ID, c.Lun)
		if sd.FlushFunc != nil {
			if err := sd.FlushFunc(); err != nil {
				return err
			}
		}
		sd.Flags.Stopped = true
		return nil
	case OpProtect:
		sd, _ := e.lookup(c.ID, c.Lun)
		sd.Flags.WriteProtected = true
		return nil
	case OpUnprotect:
		sd, _ := e.lookup(c.ID, c.Lun)
		sd.Flags.WriteProtected = false
		return nil
	}
	return fmt.Errorf("unknown device operation %q", c.Operation)
}

func (e *Executor) applyAttach(c Command) error {
	lu, sd, err := e.newDevice(c)
	if err != nil {
		return err
	}
	if err := e.checkUniqueDeviceType(lu); err != nil {
		return err
	}
	// sd is nil for the PrimaryDevice-only pseudo-devices (network
	// adapter, printer, host services): they have no backing image file
	// and no storage.StorageDevice to validate or reserve.
	if sd != nil {
		if c.Filename != "" {
			if err := sd.ValidateFile(c.Filename); err != nil {
				return err
			}
			if err := sd.ReserveFile(c.Filename); err != nil {
				return err
			}
		} else if !sd.Flags.Removable {
			return fmt.Errorf("non-removable device at (%d,%d) requires a filename", c.ID, c.Lun)
		}
	}
	ctrl := e.factory.GetOrCreate(c.ID)
	ctrl.AttachLUN(c.Lun, lu)
	return nil
}
