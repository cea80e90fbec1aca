package imagefile

// KindCephRBD backs a device with a Ceph RBD image; path format is
// "poolname/imagename". Declared without the "ceph" build tag so callers
// can reference the kind string even when the cgo-dependent implementation
// in ceph.go (which needs librados/librbd headers) is not built.
const KindCephRBD = "ceph-rbd"
