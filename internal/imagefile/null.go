package imagefile

// KindNull is a discard backend: reads return zeroed bytes, writes succeed
// without persisting, adapted from the teacher's pkg/scsi/backingstore's
// NullBackingStore for the same "device with no real storage" role —
// it needs no filesystem and is reachable through New(KindNull).
const KindNull = "null"

func init() {
	Register(KindNull, func() Backend { return &NullBackend{} })
}

type NullBackend struct {
	size int64
}

func (b *NullBackend) Open(path string) error { return nil }
func (b *NullBackend) Close() error            { return nil }
func (b *NullBackend) Size() (int64, error)    { return b.size, nil }

func (b *NullBackend) ReadAt(p []byte, off int64) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (b *NullBackend) WriteAt(p []byte, off int64) (int, error) {
	return len(p), nil
}

func (b *NullBackend) Sync() error { return nil }
