package imagefile

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const KindFile = "file"

func init() {
	Register(KindFile, func() Backend { return &FileBackend{} })
}

// FileBackend is the cooked-or-raw plain-file backend, adapted from the
// teacher's pkg/scsi/backingstore/common.go FileBackingStore.
type FileBackend struct {
	file *os.File
	size int64
}

func (b *FileBackend) Open(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	b.file = f
	b.size = fi.Size()
	return nil
}

func (b *FileBackend) Close() error {
	return b.file.Close()
}

func (b *FileBackend) Size() (int64, error) { return b.size, nil }

func (b *FileBackend) ReadAt(p []byte, off int64) (int, error) {
	n, err := b.file.ReadAt(p, off)
	if err != nil {
		return n, fmt.Errorf("imagefile: read at %d: %w", off, err)
	}
	return n, nil
}

func (b *FileBackend) WriteAt(p []byte, off int64) (int, error) {
	n, err := b.file.WriteAt(p, off)
	if err != nil {
		log.WithError(err).Error("imagefile: write failed")
		return n, fmt.Errorf("imagefile: write at %d: %w", off, err)
	}
	return n, nil
}

func (b *FileBackend) Sync() error {
	return unix.Fdatasync(int(b.file.Fd()))
}
