package storage

import (
	"os"
	"testing"

	"github.com/s2p-go/s2pd/internal/device"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

func newTestStorage(id, lun int) *StorageDevice {
	d := device.NewDevice(id, lun, scsiproto.DeviceFixedDisk)
	p := device.NewPrimaryDevice(d)
	m := device.NewModePageDevice(p)
	return NewStorageDevice(m)
}

func TestValidateFileRejectsEmpty(t *testing.T) {
	f, err := os.CreateTemp("", "storage-empty-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.Close()

	s := newTestStorage(0, 0)
	if err := s.ValidateFile(f.Name()); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
}

func TestValidateFileAcceptsNonEmpty(t *testing.T) {
	f, err := os.CreateTemp("", "storage-nonempty-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(make([]byte, 4096)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s := newTestStorage(0, 0)
	if err := s.ValidateFile(f.Name()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Flags.Ready {
		t.Error("expected Ready to be set after validation")
	}
}

func TestReserveFileConflict(t *testing.T) {
	s1 := newTestStorage(0, 0)
	s2 := newTestStorage(1, 0)

	if err := s1.ReserveFile("shared.img"); err != nil {
		t.Fatalf("first reservation should succeed: %v", err)
	}
	if err := s2.ReserveFile("shared.img"); err != ErrImageInUse {
		t.Fatalf("expected ErrImageInUse, got %v", err)
	}

	id, lun := GetIDsForReservedFile("shared.img")
	if id != 0 || lun != 0 {
		t.Errorf("expected owner (0,0), got (%d,%d)", id, lun)
	}

	s1.UnreserveFile()
	id, lun = GetIDsForReservedFile("shared.img")
	if id != -1 || lun != -1 {
		t.Errorf("expected unreserved after UnreserveFile, got (%d,%d)", id, lun)
	}
}

func TestStartStopUnitStopFlushesCache(t *testing.T) {
	s := newTestStorage(0, 0)
	flushed := false
	s.FlushFunc = func() error { flushed = true; return nil }

	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpStartStopUnit), 0, 0, 0, 0x00, 0}}
	if _, err := s.Dispatch(scsiproto.OpStartStopUnit, ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !s.Flags.Stopped {
		t.Error("expected Stopped to be set")
	}
	if !flushed {
		t.Error("expected FlushFunc to be called on stop")
	}
}

func TestStartStopUnitEjectRequiresUnlocked(t *testing.T) {
	s := newTestStorage(0, 0)
	s.Flags.Locked = true

	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpStartStopUnit), 0, 0, 0, 0x02, 0}} // load bit, not start
	_, err := s.Dispatch(scsiproto.OpStartStopUnit, ctx)
	ex, ok := err.(*scsiproto.Exception)
	if !ok || ex.Asc != scsiproto.AscMediumRemovalPrevented {
		t.Fatalf("expected medium removal prevented, got %v", err)
	}
}

func TestStartStopUnitEjectClearsReservationAndArmsMediumChange(t *testing.T) {
	s := newTestStorage(0, 0)
	if err := s.ReserveFile("eject-me.img"); err != nil {
		t.Fatal(err)
	}

	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpStartStopUnit), 0, 0, 0, 0x02, 0}}
	if _, err := s.Dispatch(scsiproto.OpStartStopUnit, ctx); err != nil {
		t.Fatalf("eject failed: %v", err)
	}
	if !s.Flags.Removed || s.Flags.Ready {
		t.Error("expected Removed=true, Ready=false after eject")
	}
	if !s.MediumChangePending {
		t.Error("expected medium change armed after eject")
	}
	if id, _ := GetIDsForReservedFile("eject-me.img"); id != -1 {
		t.Error("expected reservation cleared after eject")
	}
}

func TestPreventAllowMediaRemoval(t *testing.T) {
	s := newTestStorage(0, 0)
	ctx := &device.Context{CDB: []byte{byte(scsiproto.OpPreventAllowMediaRemoval), 0, 0, 0, 0x01, 0}}
	if _, err := s.Dispatch(scsiproto.OpPreventAllowMediaRemoval, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Flags.Locked {
		t.Error("expected Locked to be set")
	}
}
