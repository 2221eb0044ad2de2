// Package freemap implements the free-sector bitmap of spec §4.1: a
// bit-per-sector file stored in inode sector 0, loaded at mount and
// persisted on shutdown. Sector i's bit is 1 iff sector i is free.
package freemap

import (
	"sync"

	"github.com/willf/bitset"
)

// FreeMap tracks which sectors on a device are unused.
//
// It deliberately allocates and releases only single sectors: the core
// never needs multi-sector extents (spec §4.1 — "only n=1 is used in the
// core").
type FreeMap struct {
	mu   sync.Mutex
	bits *bitset.BitSet
	n    uint32
}

// New creates a free-map for a device of n sectors with every bit set to
// "free" except the reserved sectors (the free-map's own sector and the
// root directory's sector), which are marked used up front.
func New(n uint32, reserved ...uint32) *FreeMap {
	fm := &FreeMap{
		bits: bitset.New(uint(n)),
		n:    n,
	}
	for i := uint32(0); i < n; i++ {
		fm.bits.Set(uint(i))
	}
	for _, r := range reserved {
		fm.bits.Clear(uint(r))
	}
	return fm
}

// Allocate returns the lowest-numbered free sector and marks it used, or
// (0, false) if the device is full. Only single-sector allocation is
// supported, per spec §4.1.
func (fm *FreeMap) Allocate() (uint32, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	idx, ok := fm.bits.NextSet(0)
	if !ok {
		return 0, false
	}
	fm.bits.Clear(idx)
	return uint32(idx), true
}

// Release marks sector free again.
func (fm *FreeMap) Release(sector uint32) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.bits.Set(uint(sector))
}

// InUse reports whether sector is currently allocated.
func (fm *FreeMap) InUse(sector uint32) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return !fm.bits.Test(uint(sector))
}

// Count returns the number of currently-free sectors, used by tests that
// assert free-map bit counts are preserved across mount/unmount cycles
// (spec §8).
func (fm *FreeMap) Count() uint32 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return uint32(fm.bits.Count())
}

// Marshal serializes the bitmap as one byte per 8 sectors (bit i set means
// sector i is free), matching the "bit-per-sector file" described in
// spec §4.1. The encoding is independent of the bitset library's internal
// word representation so it is stable across library versions.
func (fm *FreeMap) Marshal() []byte {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	buf := make([]byte, (fm.n+7)/8)
	for i := uint32(0); i < fm.n; i++ {
		if fm.bits.Test(uint(i)) {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

// Unmarshal restores a FreeMap of n sectors from bytes previously produced
// by Marshal.
func Unmarshal(n uint32, data []byte) *FreeMap {
	fm := &FreeMap{
		bits: bitset.New(uint(n)),
		n:    n,
	}
	for i := uint32(0); i < n; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			fm.bits.Set(uint(i))
		}
	}
	return fm
}

// ByteLen returns the number of bytes Marshal produces for n sectors.
func ByteLen(n uint32) int {
	return int((n + 7) / 8)
}
