package executor

import (
	"fmt"

	"github.com/s2p-go/s2pd/internal/storage"
)

// Reply is the reply-shaping layer the control channel answers through,
// per spec.md §4.8/§6: a boolean status, an optional message, and
// optional payloads.
type Reply struct {
	Status  bool
	Message string

	Devices []DeviceInfo
}

// DeviceInfo is the DEVICES_INFO payload shape, mirrored as JSON by
// internal/statusapi so operators can introspect a running daemon without
// the protobuf wire codec spec.md explicitly puts out of scope.
type DeviceInfo struct {
	ID         int    `json:"id"`
	Lun        int    `json:"lun"`
	Type       string `json:"type"`
	Vendor     string `json:"vendor"`
	Product    string `json:"product"`
	Revision   string `json:"revision"`
	Filename   string `json:"filename"`
	BlockSize  uint32 `json:"block_size"`
	BlockCount uint32 `json:"block_count"`
	ReadOnly   bool   `json:"read_only"`
	Removable  bool   `json:"removable"`
	Ready      bool   `json:"ready"`
}

// unwrapper is satisfied by every concrete device stack (internal/disk.Disk
// and friends), letting the executor reach the StorageDevice fields behind
// a bare controller.LU value.
type unwrapper interface {
	Unwrap() *storage.StorageDevice
}

// FlushAll flushes every attached device's cache, per spec.md §5's
// SHUT_DOWN requirement to "flush all caches, and return". It walks the
// same controller/LUN table Snapshot does, reaching each device's
// StorageDevice.FlushFunc through the unwrapper interface.
func (e *Executor) FlushAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, id := range e.factory.IDs() {
		ctrl, ok := e.factory.Get(id)
		if !ok {
			continue
		}
		for _, lun := range ctrl.PopulatedLUNs() {
			lu := ctrl.LUN(lun)
			uw, ok := lu.(unwrapper)
			if !ok {
				continue
			}
			sd := uw.Unwrap()
			if sd.FlushFunc == nil {
				continue
			}
			if err := sd.FlushFunc(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("flush id=%d lun=%d: %w", id, lun, err)
			}
		}
	}
	return firstErr
}

// Snapshot builds the DEVICES_INFO payload from the live controller table.
func (e *Executor) Snapshot() []DeviceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []DeviceInfo
	for _, id := range e.factory.IDs() {
		ctrl, ok := e.factory.Get(id)
		if !ok {
			continue
		}
		for _, lun := range ctrl.PopulatedLUNs() {
			lu := ctrl.LUN(lun)
			uw, ok := lu.(unwrapper)
			if !ok {
				continue
			}
			sd := uw.Unwrap()
			out = append(out, DeviceInfo{
				ID:         id,
				Lun:        lun,
				Type:       fmt.Sprintf("0x%02x", byte(sd.Type)),
				Vendor:     sd.Identity.Vendor,
				Product:    sd.Identity.Product,
				Revision:   sd.Identity.Revision,
				Filename:   sd.Filename,
				BlockSize:  sd.BlockSize,
				BlockCount: sd.BlockCount,
				ReadOnly:   sd.Flags.ReadOnly,
				Removable:  sd.Flags.Removable,
				Ready:      sd.Flags.Ready,
			})
		}
	}
	return out
}
