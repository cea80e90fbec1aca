// Package disk implements Disk & its subclasses (C7): the block-oriented
// command translators that glue StorageDevice (C5) to DiskCache (C6),
// grounded on the teacher's pkg/scsi/backingstore.go bsPerformCommand
// opcode translation and pkg/scsi/sbc.go's dispatch wiring — but with real
// semantics in place of the teacher's stub handlers.
package disk

import (
	"github.com/s2p-go/s2pd/internal/binutil"
	"github.com/s2p-go/s2pd/internal/cache"
	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
	"github.com/s2p-go/s2pd/internal/storage"
)

const defaultTracksCached = 32

// Disk adds block READ/WRITE/SEEK/FORMAT/VERIFY/READ CAPACITY to
// StorageDevice, per spec.md §4.6.
type Disk struct {
	*storage.StorageDevice
	Cache *cache.Cache
}

// NewDisk wires a Cache on top of backend for the given geometry and
// installs the block-command dispatch table.
func NewDisk(s *storage.StorageDevice, backend cache.Backend, shiftCount uint, sectorsPerTrack int, raw bool) *Disk {
	d := &Disk{
		StorageDevice: s,
		Cache:         cache.New(backend, shiftCount, sectorsPerTrack, defaultTracksCached, raw),
	}
	s.FlushFunc = d.Cache.Flush

	d.AddCommand(scsiproto.OpRead6, d.read)
	d.AddCommand(scsiproto.OpRead10, d.read)
	d.AddCommand(scsiproto.OpRead16, d.read)
	d.AddCommand(scsiproto.OpWrite6, d.write)
	d.AddCommand(scsiproto.OpWrite10, d.write)
	d.AddCommand(scsiproto.OpWrite16, d.write)
	d.AddCommand(scsiproto.OpVerify10, d.verify)
	d.AddCommand(scsiproto.OpVerify16, d.verify)
	d.AddCommand(scsiproto.OpReadCapacity10, d.readCapacity10)
	d.AddCommand(scsiproto.OpSynchronizeCache10, d.synchronizeCache)
	d.AddCommand(scsiproto.OpSynchronizeCache16, d.synchronizeCache)
	d.AddCommand(scsiproto.OpFormatUnit, d.formatUnit)
	d.AddCommand(scsiproto.OpRezeroUnit, d.seek)
	d.AddCommand(scsiproto.OpSeek6, d.seek)
	d.AddCommand(scsiproto.OpReassignBlocks, d.reassignBlocks)
	d.AddCommand(scsiproto.OpReadLong10, d.readLong)
	d.AddCommand(scsiproto.OpWriteLong10, d.writeLong)
	d.AddCommand(scsiproto.OpReadDefectData10, d.readDefectData)
	return d
}

// extractLBALen decodes the LBA and transfer length out of a READ/WRITE
// CDB, whose layout depends on the opcode group, per spec.md §4.1/§4.6.
func extractLBALen(cdb []byte) (lba uint64, length uint32) {
	op := scsiproto.Opcode(cdb[0])
	switch scsiproto.CDBGroup(op) {
	case 0: // 6-byte
		lba = uint64(cdb[1]&0x1f)<<16 | uint64(cdb[2])<<8 | uint64(cdb[3])
		length = uint32(cdb[4])
		if length == 0 {
			length = 256
		}
	case 4: // 16-byte
		lba = binutil.Uint64(cdb[2:10])
		length = binutil.Uint32(cdb[10:14])
	default: // 10/12-byte groups
		lba = uint64(binutil.Uint32(cdb[2:6]))
		length = uint32(binutil.Uint16(cdb[7:9]))
	}
	return
}

func (d *Disk) rangeCheck(lba uint64, length uint32) error {
	if length == 0 {
		return nil
	}
	if lba+uint64(length) > uint64(d.BlockCount) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscLBAOutOfRange)
	}
	return nil
}

func (d *Disk) read(_ *device.PrimaryDevice, ctx *device.Context) error {
	lba, length := extractLBALen(ctx.CDB)
	if err := d.rangeCheck(lba, length); err != nil {
		return err
	}
	blockSize := int(d.BlockSize)
	buf := make([]byte, int(length)*blockSize)
	for i := uint32(0); i < length; i++ {
		n, err := d.Cache.ReadSector(int(lba)+int(i), buf[int(i)*blockSize:(int(i)+1)*blockSize])
		if err != nil {
			return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscReadError)
		}
		if n == 0 {
			return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscLBAOutOfRange)
		}
	}
	ctx.DataIn = buf
	return nil
}

func (d *Disk) write(_ *device.PrimaryDevice, ctx *device.Context) error {
	if d.Flags.WriteProtected {
		return scsiproto.NewException(scsiproto.DataProtect, scsiproto.AscWriteProtected)
	}
	lba, length := extractLBALen(ctx.CDB)
	if err := d.rangeCheck(lba, length); err != nil {
		return err
	}
	blockSize := int(d.BlockSize)
	if len(ctx.DataOut) < int(length)*blockSize {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	for i := uint32(0); i < length; i++ {
		sector := ctx.DataOut[int(i)*blockSize : (int(i)+1)*blockSize]
		if _, err := d.Cache.WriteSector(int(lba)+int(i), sector); err != nil {
			if ex, ok := err.(*scsiproto.Exception); ok {
				return ex
			}
			return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscWriteError)
		}
	}
	return nil
}

// verify range-checks the VERIFY target; byte-for-byte comparison happens
// only when BYTCHK requests it and DataOut carries the comparison buffer,
// per spec.md §4.6.
func (d *Disk) verify(_ *device.PrimaryDevice, ctx *device.Context) error {
	lba, length := extractLBALen(ctx.CDB)
	if err := d.rangeCheck(lba, length); err != nil {
		return err
	}
	bytchk := len(ctx.CDB) > 1 && ctx.CDB[1]&0x02 != 0
	if !bytchk || len(ctx.DataOut) == 0 {
		return nil
	}
	blockSize := int(d.BlockSize)
	buf := make([]byte, blockSize)
	for i := uint32(0); i < length; i++ {
		n, err := d.Cache.ReadSector(int(lba)+int(i), buf)
		if err != nil || n == 0 {
			return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscReadError)
		}
		off := int(i) * blockSize
		if off+blockSize > len(ctx.DataOut) {
			break
		}
		for j := 0; j < blockSize; j++ {
			if buf[j] != ctx.DataOut[off+j] {
				return scsiproto.NewException(scsiproto.Miscompare, scsiproto.AscMiscompareDuringVerify)
			}
		}
	}
	return nil
}

// readCapacity10 returns the 8-byte (last LBA, block size) structure, per
// spec.md §8 scenario S1.
func (d *Disk) readCapacity10(_ *device.PrimaryDevice, ctx *device.Context) error {
	buf := make([]byte, 8)
	lastLBA := uint32(0)
	if d.BlockCount > 0 {
		lastLBA = d.BlockCount - 1
	}
	binutil.PutUint32(buf[0:4], lastLBA)
	binutil.PutUint32(buf[4:8], d.BlockSize)
	ctx.DataIn = buf
	return nil
}

func (d *Disk) synchronizeCache(_ *device.PrimaryDevice, ctx *device.Context) error {
	if err := d.Cache.Flush(); err != nil {
		return scsiproto.NewException(scsiproto.MediumError, scsiproto.AscWriteError)
	}
	return nil
}

func (d *Disk) formatUnit(_ *device.PrimaryDevice, ctx *device.Context) error {
	return nil
}

func (d *Disk) seek(_ *device.PrimaryDevice, ctx *device.Context) error {
	lba, _ := extractLBALen(ctx.CDB)
	if lba >= uint64(d.BlockCount) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscLBAOutOfRange)
	}
	return nil
}

func (d *Disk) reassignBlocks(_ *device.PrimaryDevice, ctx *device.Context) error {
	return nil
}

// readLong/writeLong are only supported when the transfer length equals
// the block size, acting as a plain READ/WRITE, per spec.md §4.6.
func (d *Disk) readLong(p *device.PrimaryDevice, ctx *device.Context) error {
	length := int(binutil.Uint16(ctx.CDB[7:9]))
	if length != int(d.BlockSize) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	sub := *ctx
	sub.CDB = append([]byte{}, ctx.CDB...)
	sub.CDB[7], sub.CDB[8] = 0, 1
	err := d.read(p, &sub)
	ctx.DataIn = sub.DataIn
	return err
}

func (d *Disk) writeLong(p *device.PrimaryDevice, ctx *device.Context) error {
	length := int(binutil.Uint16(ctx.CDB[7:9]))
	if length != int(d.BlockSize) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInCDB)
	}
	sub := *ctx
	sub.CDB = append([]byte{}, ctx.CDB...)
	sub.CDB[7], sub.CDB[8] = 0, 1
	return d.write(p, &sub)
}

func (d *Disk) readDefectData(_ *device.PrimaryDevice, ctx *device.Context) error {
	ctx.DataIn = make([]byte, 4)
	return nil
}

// Unwrap exposes the embedded StorageDevice for callers (the executor)
// that only hold a controller.LU interface value.
func (d *Disk) Unwrap() *storage.StorageDevice {
	return d.StorageDevice
}
