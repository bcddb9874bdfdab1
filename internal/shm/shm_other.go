//go:build !linux

package shm

import (
	"errors"
	"os"
)

var errNoMmap = errors.New("shm: mmap not supported on this platform")

func createRegion(name string, size int) (*Region, error) {
	return &Region{name: name, fd: -1, data: make([]byte, size)}, nil
}

func closeRegion(*Region) error { return nil }

func mapReadOnly(*os.File, int) ([]byte, error) { return nil, errNoMmap }

func unmap([]byte) error { return nil }
