package controller

import "sync"

// Factory maps SCSI target ID to Controller and owns controller lifecycle:
// created implicitly on first LUN attach, deleted when the last LUN is
// detached, per spec.md §3 (C9).
type Factory struct {
	mu          sync.Mutex
	controllers map[int]*Controller
}

func NewFactory() *Factory {
	return &Factory{controllers: map[int]*Controller{}}
}

// GetOrCreate returns the controller for id, creating it if this is the
// first LUN attach on that ID.
func (f *Factory) GetOrCreate(id int) *Controller {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.controllers[id]
	if !ok {
		c = New(id)
		f.controllers[id] = c
	}
	return c
}

func (f *Factory) Get(id int) (*Controller, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.controllers[id]
	return c, ok
}

// RemoveIfEmpty deletes the controller for id once its last LUN has been
// detached.
func (f *Factory) RemoveIfEmpty(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.controllers[id]
	if ok && c.IsEmpty() {
		delete(f.controllers, id)
	}
}

// IDs lists every target ID with at least one attached LUN.
func (f *Factory) IDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.controllers))
	for id := range f.controllers {
		ids = append(ids, id)
	}
	return ids
}

// ResetAll implements the bus-wide RST handling from spec.md §4.7/§5: every
// controller's in-flight command is aborted before any controller accepts
// a new selection.
func (f *Factory) ResetAll() {
	f.mu.Lock()
	ctrls := make([]*Controller, 0, len(f.controllers))
	for _, c := range f.controllers {
		ctrls = append(ctrls, c)
	}
	f.mu.Unlock()
	for _, c := range ctrls {
		c.Reset()
	}
}
