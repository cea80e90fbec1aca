//go:build ceph

package imagefile

import (
	"fmt"
	"strings"

	"github.com/ceph/go-ceph/rados"
	"github.com/ceph/go-ceph/rbd"
	log "github.com/sirupsen/logrus"
)

func init() {
	Register(KindCephRBD, func() Backend { return &CephBackend{} })
}

type CephBackend struct {
	conn  *rados.Conn
	ioctx *rados.IOContext
	image *rbd.Image
	size  int64
}

func (b *CephBackend) Open(path string) error {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("imagefile: invalid ceph path %q, want pool/image", path)
	}
	poolName, imageName := parts[0], parts[1]

	conn, err := rados.NewConn()
	if err != nil {
		return err
	}
	if err := conn.ReadDefaultConfigFile(); err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	b.conn = conn

	ioctx, err := conn.OpenIOContext(poolName)
	if err != nil {
		conn.Shutdown()
		return err
	}
	b.ioctx = ioctx

	image := rbd.GetImage(ioctx, imageName)
	if image == nil {
		return fmt.Errorf("imagefile: rbd image not found: pool=%s image=%s", poolName, imageName)
	}
	b.image = image
	if err := b.image.Open(); err != nil {
		return err
	}

	size, err := b.image.GetSize()
	if err != nil {
		return err
	}
	b.size = int64(size)
	log.WithField("path", path).Debug("imagefile: opened ceph rbd image")
	return nil
}

func (b *CephBackend) Close() error {
	err := b.image.Close()
	b.ioctx.Destroy()
	b.conn.Shutdown()
	return err
}

func (b *CephBackend) Size() (int64, error) { return b.size, nil }

func (b *CephBackend) ReadAt(p []byte, off int64) (int, error) {
	n, err := b.image.ReadAt(p, off)
	return n, err
}

func (b *CephBackend) WriteAt(p []byte, off int64) (int, error) {
	n, err := b.image.WriteAt(p, off)
	return n, err
}

func (b *CephBackend) Sync() error {
	return b.image.Flush()
}
