// Package executor implements CommandExecutor (C10): attach/detach
// lifecycle, the LUN-0 invariant, dry-run validation, and the
// reply-shaping layer the control channel answers through, per spec.md
// §4.8. Grounded on the teacher's cmd/daemon.go bootstrap sequence (which
// drives scsi.InitSCSILUMap + per-target NewTarget the way ATTACH drives
// this executor) and pkg/scsi/scsi_pr.go's save/restore pattern for the
// reservation registry.
package executor

import (
	"fmt"
	"sync"

	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/storage"
)

const maxLUN = 32
const maxTargetID = 8

// Operation names the control-channel verbs this executor understands,
// per spec.md §6. Introspection-only operations (SERVER_INFO,
// DEVICES_INFO, ...) are handled by internal/statusapi and by Reply
// shaping here; they never mutate state.
type Operation string

const (
	OpAttach              Operation = "ATTACH"
	OpDetach              Operation = "DETACH"
	OpDetachAll           Operation = "DETACH_ALL"
	OpInsert              Operation = "INSERT"
	OpEject               Operation = "EJECT"
	OpStart               Operation = "START"
	OpStop                Operation = "STOP"
	OpProtect             Operation = "PROTECT"
	OpUnprotect           Operation = "UNPROTECT"
	OpReserveIDs          Operation = "RESERVE_IDS"
	OpCheckAuthentication Operation = "CHECK_AUTHENTICATION"
	OpNoOperation         Operation = "NO_OPERATION"
)

// Command is one parsed control-channel request against a single device,
// or a non-device operation when ID/Lun are unused.
type Command struct {
	Operation  Operation
	ID         int
	Lun        int
	DeviceType string // explicit request; empty means "resolve from filename extension"
	Filename   string
	BlockSize  uint32
	BlockCount uint32
	Params     map[string]string
}

// DeviceFactory constructs a controller.LU for ATTACH, opening the backing
// file; the executor validates and reserves the file afterwards. Supplied by the daemon's wiring code (which knows
// about internal/imagefile and internal/disk); the executor itself stays
// agnostic of image-file formats.
type DeviceFactory func(cmd Command) (controller.LU, *storage.StorageDevice, error)

// Executor is CommandExecutor (C10).
type Executor struct {
	mu      sync.Mutex
	factory *controller.Factory
	reserved map[int]bool
	newDevice DeviceFactory
}

func New(factory *controller.Factory, newDevice DeviceFactory) *Executor {
	return &Executor{
		factory:   factory,
		reserved:  map[int]bool{},
		newDevice: newDevice,
	}
}

// ReservedIDs returns the currently reserved target IDs, supplementing the
// spec with the original_source/cpp reserved_ids feature, exposed over
// RESERVE_IDS / RESERVED_IDS_INFO.
func (e *Executor) ReservedIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.reserved))
	for id := range e.reserved {
		out = append(out, id)
	}
	return out
}

// Process runs one control-channel request batch through the dry-run/
// real-run pattern from spec.md §4.8.
func (e *Executor) Process(cmds []Command) Reply {
	e.mu.Lock()
	defer e.mu.Unlock()

	var immediate []Command
	var deviceCmds []Command
	for _, c := range cmds {
		switch c.Operation {
		case OpDetachAll, OpReserveIDs, OpCheckAuthentication, OpNoOperation:
			immediate = append(immediate, c)
		default:
			deviceCmds = append(deviceCmds, c)
		}
	}

	for _, c := range immediate {
		if r := e.processImmediate(c); !r.Status {
			return r
		}
	}
	if len(deviceCmds) == 0 {
		return Reply{Status: true}
	}

	snapshot := storage.GlobalRegistry().Snapshot()
	for _, c := range deviceCmds {
		if err := e.validate(c, true); err != nil {
			storage.GlobalRegistry().Restore(snapshot)
			return Reply{Status: false, Message: err.Error()}
		}
	}
	storage.GlobalRegistry().Restore(snapshot)

	for _, c := range deviceCmds {
		if err := e.apply(c); err != nil {
			return Reply{Status: false, Message: err.Error()}
		}
	}

	if err := e.checkLUN0Invariant(); err != nil {
		return Reply{Status: false, Message: err.Error()}
	}
	return Reply{Status: true}
}

func (e *Executor) processImmediate(c Command) Reply {
	switch c.Operation {
	case OpDetachAll:
		for _, id := range e.factory.IDs() {
			ctrl, _ := e.factory.Get(id)
			for _, lun := range ctrl.PopulatedLUNs() {
				ctrl.DetachLUN(lun)
			}
			e.factory.RemoveIfEmpty(id)
		}
		return Reply{Status: true}
	case OpReserveIDs:
		ids, err := parseIDList(c.Params["ids"])
		if err != nil {
			return Reply{Status: false, Message: err.Error()}
		}
		for _, id := range ids {
			if id < 0 || id >= maxTargetID {
				return Reply{Status: false, Message: fmt.Sprintf("invalid reserved id %d", id)}
			}
		}
		e.reserved = map[int]bool{}
		for _, id := range ids {
			e.reserved[id] = true
		}
		return Reply{Status: true}
	case OpCheckAuthentication, OpNoOperation:
		return Reply{Status: true}
	}
	return Reply{Status: true}
}

// checkLUN0Invariant implements spec.md §3/§8 property 6: for every
// controller present, a device exists at LUN 0.
func (e *Executor) checkLUN0Invariant() error {
	for _, id := range e.factory.IDs() {
		ctrl, ok := e.factory.Get(id)
		if !ok {
			continue
		}
		if !ctrl.HasLUN0() {
			return fmt.Errorf("LUN 0 invariant violated for target %d", id)
		}
	}
	return nil
}

func parseIDList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	cur := 0
	started := false
	for _, r := range s + "," {
		if r == ',' {
			if started {
				out = append(out, cur)
			}
			cur = 0
			started = false
			continue
		}
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid id list %q", s)
		}
		cur = cur*10 + int(r-'0')
		started = true
	}
	return out, nil
}
