package disk

import (
	"github.com/s2p-go/s2pd/internal/cache"
	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
	"github.com/s2p-go/s2pd/internal/storage"
)

const sectorsPerTrack = 256

// stack builds the Device -> PrimaryDevice -> ModePageDevice ->
// StorageDevice chain common to every disk subclass.
func stack(id, lun int, devType scsiproto.DeviceType, removable bool) *storage.StorageDevice {
	d := device.NewDevice(id, lun, devType)
	d.Flags.Removable = removable
	p := device.NewPrimaryDevice(d)
	m := device.NewModePageDevice(p)
	return storage.NewStorageDevice(m)
}

// NewFixedDisk builds a non-removable block device (C7 "fixed disk").
func NewFixedDisk(id, lun int, blockSize uint32, blockCount uint32, backend cache.Backend) *Disk {
	s := stack(id, lun, scsiproto.DeviceFixedDisk, false)
	s.Identity.Set("S2PGO   ", "FIXED DISK      ", "1.0 ", false)
	s.BlockSize = blockSize
	s.BlockCount = blockCount
	s.SupportedBlockSizes = map[uint32]bool{256: true, 512: true, 1024: true, 2048: true, 4096: true}
	s.Flags.Stoppable = true
	shift := shiftForBlockSize(blockSize)
	return NewDisk(s, backend, shift, sectorsPerTrack, false)
}

// NewRemovableDisk builds a removable, non-optical block device.
func NewRemovableDisk(id, lun int, blockSize uint32, blockCount uint32, backend cache.Backend) *Disk {
	s := stack(id, lun, scsiproto.DeviceFixedDisk, true)
	s.Identity.Set("S2PGO   ", "REMOVABLE DISK  ", "1.0 ", false)
	s.BlockSize = blockSize
	s.BlockCount = blockCount
	s.SupportedBlockSizes = map[uint32]bool{512: true, 1024: true, 2048: true}
	s.Flags.Stoppable = true
	s.Flags.Lockable = true
	shift := shiftForBlockSize(blockSize)
	return NewDisk(s, backend, shift, sectorsPerTrack, false)
}

// NewCDROM builds a read-only optical device, using DiskCache's raw mode
// (0x930-byte frames) per spec.md §4.5.
func NewCDROM(id, lun int, blockCount uint32, backend cache.Backend) *Disk {
	s := stack(id, lun, scsiproto.DeviceCDROM, true)
	s.Identity.Set("S2PGO   ", "CD-ROM          ", "1.0 ", false)
	s.BlockSize = 2048
	s.BlockCount = blockCount
	s.Flags.ReadOnly = true
	s.Flags.Stoppable = true
	s.Flags.Lockable = true
	return NewDisk(s, backend, 11, sectorsPerTrack, true)
}

// NewMagnetoOptical builds a removable MO device.
func NewMagnetoOptical(id, lun int, blockSize uint32, blockCount uint32, backend cache.Backend) *Disk {
	s := stack(id, lun, scsiproto.DeviceMagnetoOptical, true)
	s.Identity.Set("S2PGO   ", "MO              ", "1.0 ", false)
	s.BlockSize = blockSize
	s.BlockCount = blockCount
	s.SupportedBlockSizes = map[uint32]bool{512: true, 1024: true, 2048: true}
	s.Flags.Stoppable = true
	s.Flags.Lockable = true
	shift := shiftForBlockSize(blockSize)
	return NewDisk(s, backend, shift, sectorsPerTrack, false)
}

func shiftForBlockSize(size uint32) uint {
	shift := uint(0)
	for v := size; v > 1; v >>= 1 {
		shift++
	}
	return shift
}
