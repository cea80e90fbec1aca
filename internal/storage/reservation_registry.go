// Package storage implements StorageDevice (C5): removable-medium
// semantics, the process-wide file-reservation registry, and image
// validation, grounded on the teacher's pkg/scsi/scsi_pr.go reservation
// operator pattern (adapted from persistent-reservation keys to the
// simpler per-file attach registry spec.md §3/§4.4 describes).
package storage

import "sync"

// IDLun identifies the (target id, lun) pair that owns a reserved file.
type IDLun struct {
	ID  int
	Lun int
}

// Registry is the process-wide pathname -> (id, lun) map from spec.md §3.
// It is guarded by the same mutex the executor holds over the controller
// table, per spec.md §5; Registry's own lock is an implementation detail
// that makes it safe to use from tests independent of that larger lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]IDLun
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]IDLun{}}
}

var global = NewRegistry()

// GlobalRegistry returns the single process-wide registry, mirroring the
// teacher's GetSCSIReservationOperator() singleton accessor.
func GlobalRegistry() *Registry { return global }

// ReserveFile inserts filename -> (id, lun); fails if filename is empty or
// already present, per spec.md §4.4.
func (r *Registry) ReserveFile(filename string, id, lun int) error {
	if filename == "" {
		return errEmptyFilename
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[filename]; exists {
		return ErrImageInUse
	}
	r.entries[filename] = IDLun{ID: id, Lun: lun}
	return nil
}

// UnreserveFile removes the mapping for filename, if any.
func (r *Registry) UnreserveFile(filename string) {
	if filename == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, filename)
}

// GetIDsForReservedFile returns the owner of path, or (-1, -1) if
// unreserved, per spec.md §4.4.
func (r *Registry) GetIDsForReservedFile(path string) (id, lun int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[path]; ok {
		return e.ID, e.Lun
	}
	return -1, -1
}

// Snapshot and Restore let the executor save/restore the registry around a
// dry-run pass, per spec.md §4.8 and §9's open question about also
// restoring property-handler state.
func (r *Registry) Snapshot() map[string]IDLun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]IDLun, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

func (r *Registry) Restore(snapshot map[string]IDLun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = snapshot
}
