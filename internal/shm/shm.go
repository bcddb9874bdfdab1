package shm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrInvalidSize is returned for regions of zero or negative size.
var ErrInvalidSize = errors.New("shm: invalid region size")

// Region is a writable shared-memory buffer.
type Region struct {
	name string
	fd   int
	data []byte

	closeOnce sync.Once
	closeErr  error
}

// Create allocates a region of size bytes labelled name.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return createRegion(name, size)
}

// Name returns the label the region was created with.
func (r *Region) Name() string { return r.name }

// Bytes returns the mapped memory. It is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

// Fd returns the backing descriptor, or -1 for heap regions.
func (r *Region) Fd() int { return r.fd }

// Size returns the region length in bytes.
func (r *Region) Size() int { return len(r.data) }

// Close unmaps the region and closes its descriptor.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = closeRegion(r)
		r.data = nil
	})
	return r.closeErr
}

// Mapping is a read-only view of a file.
type Mapping struct {
	data   []byte
	mapped bool
}

// MapFile maps f read-only. When the platform cannot map the file it is
// read into memory instead.
func MapFile(f *os.File) (*Mapping, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	size := info.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if data, err := mapReadOnly(f, int(size)); err == nil {
		return &Mapping{data: data, mapped: true}, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", f.Name(), err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return &Mapping{data: data}, nil
}

// Bytes returns the file contents. Invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Mapped reports whether the contents are memory mapped.
func (m *Mapping) Mapped() bool { return m.mapped }

// Close releases the mapping.
func (m *Mapping) Close() error {
	data := m.data
	m.data = nil
	if !m.mapped || data == nil {
		return nil
	}
	m.mapped = false
	return unmap(data)
}
