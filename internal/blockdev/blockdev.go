// Package blockdev provides the block-device contract the filesystem core
// consumes: synchronous, reliable, whole-sector reads and writes by sector
// number. The core treats the concrete driver as an external collaborator;
// this package supplies two implementations (memory-backed, for tests, and
// file-backed, for the demo CLI) so the core is exercisable end to end.
package blockdev

import "sync/atomic"

// SectorSize is the fixed size of every sector on a Device, matching the
// on-disk inode and index-block layout.
const SectorSize = 512

// Device is a flat, fixed-size, sector-addressable block device.
type Device interface {
	// Read fills dst (which must be exactly SectorSize bytes) with the
	// current contents of sector.
	Read(sector uint32, dst []byte) error
	// Write persists src (exactly SectorSize bytes) as the new contents of
	// sector.
	Write(sector uint32, src []byte) error
	// NumSectors returns the fixed capacity of the device.
	NumSectors() uint32
	// WriteCount returns the number of completed Write calls, exposed for
	// tests that assert on device write traffic (spec §8 scenario 2).
	WriteCount() uint64
	// Close releases any resources held by the device.
	Close() error
}

// writeCounter is embedded by both implementations so WriteCount stays
// consistent between them.
type writeCounter struct {
	n uint64
}

func (c *writeCounter) bump() {
	atomic.AddUint64(&c.n, 1)
}

func (c *writeCounter) WriteCount() uint64 {
	return atomic.LoadUint64(&c.n)
}
