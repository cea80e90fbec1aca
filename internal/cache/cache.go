package cache

import (
	"fmt"

	"github.com/s2p-go/s2pd/internal/scsiproto"
)

const (
	rawFrameSize  = 0x930
	rawHeaderSize = 0x10
)

// Backend is the minimal positioned-I/O surface DiskCache needs from an
// image file; internal/imagefile's file/qcow2/ceph backends all satisfy it.
type Backend interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
}

// Cache is the per-device track cache from spec.md §4.5.
type Cache struct {
	backend         Backend
	raw             bool // CD-ROM 0x930-frame mode; writes forbidden
	shiftCount      uint
	sectorsPerTrack int
	maxTracks       int

	tracks map[int]*Track
	lru    []int // front = most recently used

	CacheMissReadCount uint64
}

func New(backend Backend, shiftCount uint, sectorsPerTrack, maxTracks int, raw bool) *Cache {
	return &Cache{
		backend:         backend,
		raw:             raw,
		shiftCount:      shiftCount,
		sectorsPerTrack: sectorsPerTrack,
		maxTracks:       maxTracks,
		tracks:          map[int]*Track{},
	}
}

func (c *Cache) trackAndSector(lba int) (trackNumber, sectorInTrack int) {
	return lba / c.sectorsPerTrack, lba % c.sectorsPerTrack
}

func (c *Cache) touch(trackNumber int) {
	for i, n := range c.lru {
		if n == trackNumber {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append([]int{trackNumber}, c.lru...)
}

// getOrLoad returns the resident track, loading it from the backend on
// first access and counting the miss, per spec.md §4.5.
func (c *Cache) getOrLoad(trackNumber int) (*Track, error) {
	if t, ok := c.tracks[trackNumber]; ok {
		c.touch(trackNumber)
		return t, nil
	}
	if err := c.evictIfFull(); err != nil {
		return nil, err
	}
	t := newTrack(trackNumber, c.shiftCount, c.sectorsPerTrack)
	if err := c.load(t); err != nil {
		return nil, err
	}
	t.Initialized = true
	c.CacheMissReadCount++
	c.tracks[trackNumber] = t
	c.touch(trackNumber)
	return t, nil
}

func (c *Cache) trackBaseSectorIndex(trackNumber int) int64 {
	return int64(trackNumber) << 8
}

func (c *Cache) load(t *Track) error {
	if c.raw {
		sectorSize := 1 << c.shiftCount
		base := c.trackBaseSectorIndex(t.Number) * rawFrameSize
		for s := 0; s < t.SectorCount; s++ {
			off := base + rawHeaderSize + int64(s)*rawFrameSize
			n, err := c.backend.ReadAt(t.Data[s*sectorSize:(s+1)*sectorSize], off)
			if err != nil {
				return fmt.Errorf("cache: raw track %d sector %d read: %w", t.Number, s, err)
			}
			_ = n
		}
		return nil
	}
	off := c.trackBaseSectorIndex(t.Number) << c.shiftCount
	if _, err := c.backend.ReadAt(t.Data, off); err != nil {
		return fmt.Errorf("cache: track %d read: %w", t.Number, err)
	}
	return nil
}

// ReadSector copies one sector's bytes out, loading its track if needed.
// It returns 0 with a nil error if sectorInTrack is out of [0,
// sectorsPerTrack), signaling a logical-block-out-of-range condition to
// the caller (Disk, C7), per spec.md §4.5.
func (c *Cache) ReadSector(lba int, out []byte) (int, error) {
	if lba < 0 {
		return 0, nil
	}
	trackNumber, sector := c.trackAndSector(lba)
	t, err := c.getOrLoad(trackNumber)
	if err != nil {
		return 0, err
	}
	if sector >= t.SectorCount {
		return 0, nil
	}
	size := t.sectorSize()
	n := copy(out, t.Data[sector*size:(sector+1)*size])
	return n, nil
}

// WriteSector copies bytes into the cached sector. If the bytes are
// unchanged, no dirty flag is set, avoiding a gratuitous write-back per
// spec.md §4.5. Raw-mode writes always fail, per spec.md §4.5/§8 property 5.
func (c *Cache) WriteSector(lba int, data []byte) (int, error) {
	if c.raw {
		return 0, scsiproto.NewException(scsiproto.DataProtect, scsiproto.AscWriteProtected)
	}
	if lba < 0 {
		return 0, nil
	}
	trackNumber, sector := c.trackAndSector(lba)
	t, err := c.getOrLoad(trackNumber)
	if err != nil {
		return 0, err
	}
	if sector >= t.SectorCount {
		return 0, nil
	}
	size := t.sectorSize()
	existing := t.Data[sector*size : (sector+1)*size]
	n := len(data)
	if n > size {
		n = size
	}
	if bytesEqual(existing[:n], data[:n]) {
		return n, nil
	}
	copy(existing, data[:n])
	t.markModified(sector)
	return n, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Flush writes back every dirty track, grouping contiguous modified
// sectors into one positioned write per group, per spec.md §4.5. An I/O
// error aborts the flush and is surfaced to the caller; the cache does not
// claim consistency past that point.
func (c *Cache) Flush() error {
	for _, t := range c.tracks {
		if !t.Dirty {
			continue
		}
		if err := c.flushTrack(t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) flushTrack(t *Track) error {
	size := t.sectorSize()
	base := c.trackBaseSectorIndex(t.Number) << c.shiftCount
	for _, run := range t.modifiedRuns() {
		start, length := run[0], run[1]
		off := base + int64(start*size)
		buf := t.Data[start*size : (start+length)*size]
		if _, err := c.backend.WriteAt(buf, off); err != nil {
			return fmt.Errorf("cache: flush track %d: %w", t.Number, err)
		}
	}
	if err := c.backend.Sync(); err != nil {
		return fmt.Errorf("cache: sync track %d: %w", t.Number, err)
	}
	t.clearModified()
	return nil
}

// evictIfFull drops the LRU clean track, or failing that flushes and drops
// the LRU dirty track, per spec.md §4.5's eviction policy.
func (c *Cache) evictIfFull() error {
	if c.maxTracks <= 0 || len(c.tracks) < c.maxTracks {
		return nil
	}
	for i := len(c.lru) - 1; i >= 0; i-- {
		n := c.lru[i]
		t := c.tracks[n]
		if t == nil || t.Dirty {
			continue
		}
		delete(c.tracks, n)
		c.lru = append(c.lru[:i], c.lru[i+1:]...)
		return nil
	}
	for i := len(c.lru) - 1; i >= 0; i-- {
		n := c.lru[i]
		t := c.tracks[n]
		if t == nil {
			continue
		}
		if err := c.flushTrack(t); err != nil {
			return err
		}
		delete(c.tracks, n)
		c.lru = append(c.lru[:i], c.lru[i+1:]...)
		return nil
	}
	return nil
}
