// Package cache implements DiskCache (C6): the track-grained read-through
// / write-back cache in front of mass-storage image files, per spec.md
// §4.5. The teacher has no direct analogue — gostor/gotgt's backing
// stores go straight to the file on every command — so this is built
// fresh, in the teacher's error-wrapping idiom (pkg/scsi/backingstore.go).
package cache

// Track is one cached, fixed-size run of sectors, per spec.md §3.
type Track struct {
	Number      int
	ShiftCount  uint // log2(sector size), 8..12
	SectorCount int  // 1..256
	Data        []byte
	Modified    []bool
	Initialized bool
	Dirty       bool
}

func newTrack(number int, shiftCount uint, sectorCount int) *Track {
	return &Track{
		Number:      number,
		ShiftCount:  shiftCount,
		SectorCount: sectorCount,
		Data:        make([]byte, sectorCount<<shiftCount),
		Modified:    make([]bool, sectorCount),
	}
}

func (t *Track) sectorSize() int { return 1 << t.ShiftCount }

// markModified records a dirty sector and sets the track-level dirty flag.
func (t *Track) markModified(sector int) {
	t.Modified[sector] = true
	t.Dirty = true
}

// modifiedRuns groups contiguous modified sectors into (start, length)
// pairs, for Flush to issue one positioned write per run instead of one
// per sector, per spec.md §4.5.
func (t *Track) modifiedRuns() [][2]int {
	var runs [][2]int
	start := -1
	for i := 0; i <= len(t.Modified); i++ {
		mod := i < len(t.Modified) && t.Modified[i]
		if mod && start == -1 {
			start = i
		} else if !mod && start != -1 {
			runs = append(runs, [2]int{start, i - start})
			start = -1
		}
	}
	return runs
}

func (t *Track) clearModified() {
	for i := range t.Modified {
		t.Modified[i] = false
	}
	t.Dirty = false
}
