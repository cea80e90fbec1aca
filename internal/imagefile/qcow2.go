package imagefile

import (
	"github.com/dypflying/go-qcow2lib/qcow2"
	log "github.com/sirupsen/logrus"
)

const KindQcow2 = "qcow2"

func init() {
	Register(KindQcow2, func() Backend { return &Qcow2Backend{} })
}

// Qcow2Backend is a copy-on-write image backend, adapted from the
// teacher's pkg/scsi/backingstore/qcow2.go qcow2Store.
type Qcow2Backend struct {
	child *qcow2.BdrvChild
	size  int64
}

func (b *Qcow2Backend) Open(path string) error {
	opts := map[string]any{
		qcow2.OPT_FILENAME: path,
		qcow2.OPT_FMT:      "qcow2",
	}
	log.WithField("path", path).Debug("imagefile: opening qcow2 image")
	child, err := qcow2.Blk_Open(path, opts, qcow2.BDRV_O_RDWR)
	if err != nil {
		return err
	}
	b.child = child
	size, err := qcow2.Blk_Getlength(child)
	if err != nil {
		return err
	}
	b.size = int64(size)
	return nil
}

func (b *Qcow2Backend) Close() error {
	qcow2.Blk_Close(b.child)
	return nil
}

func (b *Qcow2Backend) Size() (int64, error) { return b.size, nil }

func (b *Qcow2Backend) ReadAt(p []byte, off int64) (int, error) {
	n, err := qcow2.Blk_Pread(b.child, uint64(off), p, uint64(len(p)))
	return int(n), err
}

func (b *Qcow2Backend) WriteAt(p []byte, off int64) (int, error) {
	n, err := qcow2.Blk_Pwrite(b.child, uint64(off), p, uint64(len(p)), 0)
	return int(n), err
}

func (b *Qcow2Backend) Sync() error { return nil }
