package storage

import "errors"

var (
	errEmptyFilename = errors.New("empty filename")
	// ErrImageInUse is returned by ATTACH when the filename is already
	// reserved by another (id, lun) pair, per spec.md §8 property 7.
	ErrImageInUse = errors.New("ERROR_IMAGE_IN_USE")
)
