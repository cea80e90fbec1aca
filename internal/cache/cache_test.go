package cache

import "testing"

// memBackend is an in-memory Backend for exercising Cache without a real
// file, standing in for internal/imagefile's FileBackend in unit tests.
type memBackend struct {
	data      []byte
	syncCalls int
}

func newMemBackend(size int) *memBackend {
	return &memBackend{data: make([]byte, size)}
}

func (b *memBackend) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, b.data[off:])
	return n, nil
}

func (b *memBackend) WriteAt(p []byte, off int64) (int, error) {
	n := copy(b.data[off:], p)
	return n, nil
}

func (b *memBackend) Sync() error {
	b.syncCalls++
	return nil
}

func TestCacheReadWriteRoundTrip(t *testing.T) {
	backend := newMemBackend(4096)
	c := New(backend, 9, 8, 4, false) // 512-byte sectors, 8 sectors/track

	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := c.WriteSector(3, payload); err != nil {
		t.Fatalf("WriteSector failed: %v", err)
	}
	out := make([]byte, 512)
	if _, err := c.ReadSector(3, out); err != nil {
		t.Fatalf("ReadSector failed: %v", err)
	}
	for i := range out {
		if out[i] != payload[i] {
			t.Fatalf("read-back mismatch at byte %d: got %d want %d", i, out[i], payload[i])
		}
	}
	if c.CacheMissReadCount != 1 {
		t.Errorf("expected exactly one cache miss, got %d", c.CacheMissReadCount)
	}
}

func TestCacheWriteSameBytesSkipsDirty(t *testing.T) {
	backend := newMemBackend(4096)
	c := New(backend, 9, 8, 4, false)
	zero := make([]byte, 512)
	if _, err := c.WriteSector(0, zero); err != nil {
		t.Fatalf("WriteSector failed: %v", err)
	}
	tr := c.tracks[0]
	if tr.Dirty {
		t.Fatal("writing identical bytes should not mark the track dirty")
	}
}

func TestCacheRawModeForbidsWrite(t *testing.T) {
	backend := newMemBackend(rawHeaderSize + rawFrameSize)
	c := New(backend, 11, 1, 4, true)
	_, err := c.WriteSector(0, make([]byte, 2048))
	if err == nil {
		t.Fatal("expected raw-mode write to be rejected")
	}
}

func TestCacheFlushClearsModifiedAndCallsSync(t *testing.T) {
	backend := newMemBackend(4096)
	c := New(backend, 9, 8, 4, false)
	payload := make([]byte, 512)
	payload[0] = 0xAB
	if _, err := c.WriteSector(1, payload); err != nil {
		t.Fatalf("WriteSector failed: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if backend.syncCalls == 0 {
		t.Error("expected Flush to call backend.Sync at least once")
	}
	if c.tracks[0].Dirty {
		t.Error("Flush should clear the dirty flag")
	}
	if backend.data[512] != 0xAB {
		t.Errorf("expected flushed byte 0xAB at offset 512, got %#x", backend.data[512])
	}
}

func TestCacheEvictsLRUWhenFull(t *testing.T) {
	backend := newMemBackend(1 << 20)
	c := New(backend, 9, 8, 2, false) // only 2 tracks cached at once

	buf := make([]byte, 512)
	if _, err := c.ReadSector(0, buf); err != nil { // track 0
		t.Fatal(err)
	}
	if _, err := c.ReadSector(8, buf); err != nil { // track 1
		t.Fatal(err)
	}
	if _, err := c.ReadSector(16, buf); err != nil { // track 2, evicts track 0
		t.Fatal(err)
	}
	if len(c.tracks) != 2 {
		t.Fatalf("expected exactly 2 resident tracks, got %d", len(c.tracks))
	}
	if _, ok := c.tracks[0]; ok {
		t.Error("track 0 should have been evicted as least recently used")
	}
}
