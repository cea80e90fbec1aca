package daemon

import (
	"fmt"
	"strings"

	"github.com/s2p-go/s2pd/internal/cache"
	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/disk"
	"github.com/s2p-go/s2pd/internal/executor"
	"github.com/s2p-go/s2pd/internal/extmap"
	"github.com/s2p-go/s2pd/internal/hostservices"
	"github.com/s2p-go/s2pd/internal/imagefile"
	"github.com/s2p-go/s2pd/internal/netadapter"
	"github.com/s2p-go/s2pd/internal/printer"
	"github.com/s2p-go/s2pd/internal/storage"
)

const defaultBlockSize = 512

// NewDeviceFactory builds the executor.DeviceFactory that ATTACH drives: it
// resolves a device type (explicit or by extension via extMap), opens the
// backing image file through internal/imagefile, and wraps it in the right
// internal/disk constructor. Grounded on the teacher's cmd/daemon.go, which
// plays the same "resolve type, open backing store, build device" role for
// scsi.InitSCSILUMap.
func NewDeviceFactory(extMap *extmap.Map) executor.DeviceFactory {
	return func(cmd executor.Command) (controller.LU, *storage.StorageDevice, error) {
		devType := cmd.DeviceType
		if devType == "" && cmd.Filename != "" {
			if t, ok := extMap.Lookup(cmd.Filename); ok {
				devType = t
			}
		}
		if devType == "" {
			devType = "fixed disk"
		}

		// The three pseudo-devices have no backing image file and no
		// storage.StorageDevice: PrimaryDevice alone satisfies
		// controller.LU, matching original_source/cpp's HostServices,
		// Printer, and DaynaPort, none of which extend StorageDevice.
		switch strings.ToLower(devType) {
		case "network adapter", "daynaport":
			return netadapter.New(cmd.ID, cmd.Lun), nil, nil
		case "printer":
			return printer.New(cmd.ID, cmd.Lun), nil, nil
		case "host services", "services":
			return hostservices.New(cmd.ID, cmd.Lun), nil, nil
		}

		blockSize := cmd.BlockSize
		if blockSize == 0 {
			blockSize = defaultBlockSize
		}

		var backend cache.Backend
		if cmd.Filename != "" {
			kind := backendKind(cmd.Filename, cmd.Params)
			b, err := imagefile.New(kind)
			if err != nil {
				return nil, nil, err
			}
			if err := b.Open(cmd.Filename); err != nil {
				return nil, nil, fmt.Errorf("daemon: opening %s: %w", cmd.Filename, err)
			}
			backend = b
			if size, err := b.Size(); err == nil && cmd.BlockCount == 0 && blockSize > 0 {
				cmd.BlockCount = uint32(uint64(size) / uint64(blockSize))
			}
		}

		var lu controller.LU
		var sd *storage.StorageDevice
		switch strings.ToLower(devType) {
		case "cd-rom", "cdrom":
			d := disk.NewCDROM(cmd.ID, cmd.Lun, cmd.BlockCount, backend)
			lu, sd = d, d.Unwrap()
		case "magneto-optical", "mo":
			d := disk.NewMagnetoOptical(cmd.ID, cmd.Lun, blockSize, cmd.BlockCount, backend)
			lu, sd = d, d.Unwrap()
		case "removable disk", "removable":
			d := disk.NewRemovableDisk(cmd.ID, cmd.Lun, blockSize, cmd.BlockCount, backend)
			lu, sd = d, d.Unwrap()
		case "fixed disk", "disk", "":
			d := disk.NewFixedDisk(cmd.ID, cmd.Lun, blockSize, cmd.BlockCount, backend)
			lu, sd = d, d.Unwrap()
		default:
			return nil, nil, fmt.Errorf("daemon: unsupported device type %q", devType)
		}
		sd.Params = cmd.Params
		return lu, sd, nil
	}
}

// backendKind resolves an imagefile backend kind for a filename, defaulting
// to the plain file backend unless an explicit "backend" parameter or a
// recognized suffix says otherwise.
func backendKind(filename string, params map[string]string) string {
	if params != nil {
		if k, ok := params["backend"]; ok && k != "" {
			return k
		}
	}
	if strings.HasSuffix(filename, ".qcow2") {
		return imagefile.KindQcow2
	}
	if strings.HasPrefix(filename, "rbd:") || strings.Contains(filename, "/") && looksLikeCephPool(filename, params) {
		return imagefile.KindCephRBD
	}
	return imagefile.KindFile
}

func looksLikeCephPool(filename string, params map[string]string) bool {
	if params == nil {
		return false
	}
	v, ok := params["backend"]
	return ok && v == imagefile.KindCephRBD
}
