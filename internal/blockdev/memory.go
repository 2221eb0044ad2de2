package blockdev

import (
	"fmt"
	"sync"
)

// Memory is a Device backed by a single in-process byte slice. It is the
// device used by the bulk of the test suite since it needs no filesystem
// of its own to host the filesystem under test.
type Memory struct {
	writeCounter
	mu      sync.Mutex
	data    []byte
	sectors uint32
}

// NewMemory allocates a Memory device with nsectors sectors, zero-filled.
func NewMemory(nsectors uint32) *Memory {
	return &Memory{
		data:    make([]byte, int(nsectors)*SectorSize),
		sectors: nsectors,
	}
}

func (m *Memory) NumSectors() uint32 {
	return m.sectors
}

func (m *Memory) Read(sector uint32, dst []byte) error {
	if len(dst) != SectorSize {
		return fmt.Errorf("blockdev: dst must be %d bytes, got %d", SectorSize, len(dst))
	}
	if sector >= m.sectors {
		return fmt.Errorf("blockdev: sector %d out of range (%d sectors)", sector, m.sectors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int(sector) * SectorSize
	copy(dst, m.data[off:off+SectorSize])
	return nil
}

func (m *Memory) Write(sector uint32, src []byte) error {
	if len(src) != SectorSize {
		return fmt.Errorf("blockdev: src must be %d bytes, got %d", SectorSize, len(src))
	}
	if sector >= m.sectors {
		return fmt.Errorf("blockdev: sector %d out of range (%d sectors)", sector, m.sectors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int(sector) * SectorSize
	copy(m.data[off:off+SectorSize], src)
	m.bump()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
