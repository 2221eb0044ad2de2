package blockdev

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// File is a Device backed by a regular file, used by the demo CLI. It is opened
// with O_DIRECT where the platform supports it, falling back to a
// plain open when O_DIRECT is rejected (e.g. filesystems that don't
// support it, or non-Linux platforms), so that reads genuinely observe
// what the last Write persisted rather than relying on the page cache to
// mask a bug in the cache layer above.
type File struct {
	writeCounter
	mu      sync.Mutex
	f       *os.File
	sectors uint32
}

// NewFile creates (or truncates) path to hold nsectors sectors and returns
// a Device backed by it.
func NewFile(path string, nsectors uint32) (*File, error) {
	f, err := openDirect(path)
	if err != nil {
		return nil, err
	}
	size := int64(nsectors) * SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, sectors: nsectors}, nil
}

// OpenFile opens an existing device file of nsectors sectors without
// truncating it, used to remount an already-formatted device.
func OpenFile(path string, nsectors uint32) (*File, error) {
	f, err := openDirect(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f, sectors: nsectors}, nil
}

func openDirect(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|unix.O_DIRECT, 0600)
	if err != nil {
		// O_DIRECT is commonly rejected by tmpfs and by non-Linux kernels;
		// fall back to a buffered open rather than failing the mount.
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (m *File) NumSectors() uint32 {
	return m.sectors
}

func (m *File) Read(sector uint32, dst []byte) error {
	if len(dst) != SectorSize {
		return fmt.Errorf("blockdev: dst must be %d bytes, got %d", SectorSize, len(dst))
	}
	if sector >= m.sectors {
		return fmt.Errorf("blockdev: sector %d out of range (%d sectors)", sector, m.sectors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.f.ReadAt(dst, int64(sector)*SectorSize)
	return err
}

func (m *File) Write(sector uint32, src []byte) error {
	if len(src) != SectorSize {
		return fmt.Errorf("blockdev: src must be %d bytes, got %d", SectorSize, len(src))
	}
	if sector >= m.sectors {
		return fmt.Errorf("blockdev: sector %d out of range (%d sectors)", sector, m.sectors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.f.WriteAt(src, int64(sector)*SectorSize); err != nil {
		return err
	}
	m.bump()
	return nil
}

func (m *File) Close() error {
	return m.f.Close()
}
