package storage

import (
	"os"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
	"golang.org/x/sys/unix"
)

const maxImageFileSize = 2 * 1024 * 1024 * 1024 * 1024 // 2 TiB, spec.md §4.4

// StorageDevice adds removable-medium semantics and file-reservation
// bookkeeping on top of ModePageDevice, per spec.md §4.4 (C5).
type StorageDevice struct {
	*device.ModePageDevice

	lastFilename string
	// FlushFunc, when set, is called to write back dirty cache state
	// before STOP/EJECT; wired to the device's DiskCache by the disk
	// package, which embeds StorageDevice.
	FlushFunc func() error
}

func NewStorageDevice(m *device.ModePageDevice) *StorageDevice {
	s := &StorageDevice{ModePageDevice: m}
	s.AddCommand(scsiproto.OpStartStopUnit, s.startStopUnit)
	s.AddCommand(scsiproto.OpPreventAllowMediaRemoval, s.preventAllowMediaRemoval)
	return s
}

// ValidateFile implements spec.md §4.4's validate_file: block count > 0,
// size within the 2 TiB ceiling, write access checked via access(W_OK). An
// unwritable file forces read-only and non-protectable.
func (s *StorageDevice) ValidateFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() <= 0 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	if fi.Size() > maxImageFileSize {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	if unix.Access(path, unix.W_OK) != nil {
		s.Flags.ReadOnly = true
		s.Flags.Protectable = false
	}
	s.Flags.Ready = true
	s.Flags.Stopped = false
	s.Flags.Removed = false
	s.Flags.Locked = false
	return nil
}

// ReserveFile/UnreserveFile/GetIDsForReservedFile delegate to the process
// registry, scoped to this device's (ID, Lun).
func (s *StorageDevice) ReserveFile(filename string) error {
	if err := GlobalRegistry().ReserveFile(filename, s.ID, s.Lun); err != nil {
		return err
	}
	s.Filename = filename
	return nil
}

func (s *StorageDevice) UnreserveFile() {
	GlobalRegistry().UnreserveFile(s.Filename)
	s.lastFilename = s.Filename
	s.Filename = ""
}

func GetIDsForReservedFile(path string) (id, lun int) {
	return GlobalRegistry().GetIDsForReservedFile(path)
}

// startStopUnit implements the four start/load combinations from
// spec.md §4.4.
func (s *StorageDevice) startStopUnit(d *device.PrimaryDevice, ctx *device.Context) error {
	if len(ctx.CDB) < 5 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	start := ctx.CDB[4]&0x01 != 0
	load := ctx.CDB[4]&0x02 != 0

	switch {
	case start && !load:
		s.Flags.Stopped = false
		if s.lastFilename != "" {
			s.Filename = s.lastFilename
			s.ArmMediumChange()
		}
	case !start && !load:
		if s.FlushFunc != nil {
			if err := s.FlushFunc(); err != nil {
				return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscWriteError)
			}
		}
		s.Flags.Stopped = true
	case !start && load:
		if s.Flags.Locked {
			return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscMediumRemovalPrevented)
		}
		if s.FlushFunc != nil {
			if err := s.FlushFunc(); err != nil {
				return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscWriteError)
			}
		}
		s.UnreserveFile()
		s.Flags.Removed = true
		s.Flags.Ready = false
		s.ArmMediumChange()
	case start && load:
		// "loading medium" — no state change beyond start, per spec.md §4.4.
	}
	return nil
}

func (s *StorageDevice) preventAllowMediaRemoval(d *device.PrimaryDevice, ctx *device.Context) error {
	if len(ctx.CDB) < 5 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	s.Flags.Locked = ctx.CDB[4]&0x01 != 0
	return nil
}
