package inode

import (
	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

var zeroSector [blockdev.SectorSize]byte

// allocateZeroed grabs a sector from fm and immediately zero-fills it
// through the cache, implementing the spec §9 open-question fix: a newly
// allocated data sector must never expose indeterminate device contents to
// a later partial-sector read-modify-write.
func allocateZeroed(fm *freemap.FreeMap, cache *sectorcache.Cache) (uint32, bool) {
	sector, ok := fm.Allocate()
	if !ok {
		return 0, false
	}
	if err := cache.Write(sector, zeroSector[:]); err != nil {
		fm.Release(sector)
		return 0, false
	}
	return sector, true
}

func readPointerBlock(cache *sectorcache.Cache, sector uint32) ([PointersPerBlock]uint32, error) {
	var buf [blockdev.SectorSize]byte
	var out [PointersPerBlock]uint32
	if err := cache.Read(sector, buf[:]); err != nil {
		return out, err
	}
	for i := 0; i < PointersPerBlock; i++ {
		out[i] = leUint32(buf[i*4:])
	}
	return out, nil
}

func writePointerBlock(cache *sectorcache.Cache, sector uint32, block [PointersPerBlock]uint32) error {
	var buf [blockdev.SectorSize]byte
	for i := 0; i < PointersPerBlock; i++ {
		putLeUint32(buf[i*4:], block[i])
	}
	return cache.Write(sector, buf[:])
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Resize grows or shrinks d in place so that it represents exactly size
// bytes, allocating or freeing sectors as needed, per the 8-step algorithm
// of spec §4.3. On allocation failure it rolls d back to its original
// length (by recursively resizing to d.Length, which can only shrink or
// no-op, and therefore cannot itself fail) and returns false.
func Resize(d *Disk, size int64, cache *sectorcache.Cache, fm *freemap.FreeMap) bool {
	origLength := int64(d.Length)

	// Step 1: direct pointers.
	for i := 0; i < DirectPointers; i++ {
		threshold := int64(blockdev.SectorSize) * int64(i)
		if size <= threshold && d.Direct[i] != 0 {
			fm.Release(d.Direct[i])
			d.Direct[i] = 0
		} else if size > threshold && d.Direct[i] == 0 {
			sector, ok := allocateZeroed(fm, cache)
			if !ok {
				Resize(d, origLength, cache, fm)
				return false
			}
			d.Direct[i] = sector
		}
	}

	directBytes := int64(DirectPointers) * blockdev.SectorSize

	// Step 2: no indirect block needed and none exists.
	if d.Indirect == 0 && size <= directBytes {
		d.Length = int32(size)
		return true
	}

	var indirect [PointersPerBlock]uint32
	if d.Indirect == 0 {
		sector, ok := allocateZeroed(fm, cache)
		if !ok {
			Resize(d, origLength, cache, fm)
			return false
		}
		d.Indirect = sector
	} else {
		var err error
		indirect, err = readPointerBlock(cache, d.Indirect)
		if err != nil {
			Resize(d, origLength, cache, fm)
			return false
		}
	}

	// Step 3: indirect pointers.
	for j := 0; j < PointersPerBlock; j++ {
		threshold := int64(DirectPointers+j) * blockdev.SectorSize
		if size <= threshold && indirect[j] != 0 {
			fm.Release(indirect[j])
			indirect[j] = 0
		} else if size > threshold && indirect[j] == 0 {
			sector, ok := allocateZeroed(fm, cache)
			if !ok {
				Resize(d, origLength, cache, fm)
				return false
			}
			indirect[j] = sector
		}
	}

	// Step 4.
	if size <= directBytes {
		fm.Release(d.Indirect)
		d.Indirect = 0
	} else if err := writePointerBlock(cache, d.Indirect, indirect); err != nil {
		Resize(d, origLength, cache, fm)
		return false
	}

	indirectBytes := int64(DirectPointers+PointersPerBlock) * blockdev.SectorSize

	// Step 5: no double-indirect block needed and none exists.
	if d.DoubleIndirect == 0 && size <= indirectBytes {
		d.Length = int32(size)
		return true
	}

	var outer [PointersPerBlock]uint32
	if d.DoubleIndirect == 0 {
		sector, ok := allocateZeroed(fm, cache)
		if !ok {
			Resize(d, origLength, cache, fm)
			return false
		}
		d.DoubleIndirect = sector
	} else {
		var err error
		outer, err = readPointerBlock(cache, d.DoubleIndirect)
		if err != nil {
			Resize(d, origLength, cache, fm)
			return false
		}
	}

	// Step 6: double-indirect pointers.
	for i := 0; i < PointersPerBlock; i++ {
		var inner [PointersPerBlock]uint32
		if outer[i] == 0 {
			sector, ok := allocateZeroed(fm, cache)
			if !ok {
				Resize(d, origLength, cache, fm)
				return false
			}
			outer[i] = sector
		} else {
			var err error
			inner, err = readPointerBlock(cache, outer[i])
			if err != nil {
				Resize(d, origLength, cache, fm)
				return false
			}
		}

		for j := 0; j < PointersPerBlock; j++ {
			threshold := int64(DirectPointers+PointersPerBlock+PointersPerBlock*i+j) * blockdev.SectorSize
			if size <= threshold && inner[j] != 0 {
				fm.Release(inner[j])
				inner[j] = 0
			} else if size > threshold && inner[j] == 0 {
				sector, ok := allocateZeroed(fm, cache)
				if !ok {
					Resize(d, origLength, cache, fm)
					return false
				}
				inner[j] = sector
			}
		}

		innerThreshold := int64(DirectPointers+PointersPerBlock+PointersPerBlock*i) * blockdev.SectorSize
		if size <= innerThreshold {
			fm.Release(outer[i])
			outer[i] = 0
		} else if err := writePointerBlock(cache, outer[i], inner); err != nil {
			Resize(d, origLength, cache, fm)
			return false
		}
	}

	// Step 7.
	if size <= indirectBytes {
		fm.Release(d.DoubleIndirect)
		d.DoubleIndirect = 0
	} else if err := writePointerBlock(cache, d.DoubleIndirect, outer); err != nil {
		Resize(d, origLength, cache, fm)
		return false
	}

	// Step 8.
	d.Length = int32(size)
	return true
}
