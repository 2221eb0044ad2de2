package inode

import (
	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

// byteToSector maps byte offset pos (which must be < d.Length) to the
// sector containing it, per spec §4.3. The bool is false for an
// out-of-range offset.
func byteToSector(d *Disk, cache *sectorcache.Cache, pos int64) (uint32, bool) {
	if pos >= int64(d.Length) {
		return 0, false
	}
	k := pos / blockdev.SectorSize
	if k < DirectPointers {
		return d.Direct[k], true
	}
	k -= DirectPointers
	if k < PointersPerBlock {
		block, err := readPointerBlock(cache, d.Indirect)
		if err != nil {
			return 0, false
		}
		return block[k], true
	}
	k -= PointersPerBlock
	outer, err := readPointerBlock(cache, d.DoubleIndirect)
	if err != nil {
		return 0, false
	}
	inner, err := readPointerBlock(cache, outer[k/PointersPerBlock])
	if err != nil {
		return 0, false
	}
	return inner[k%PointersPerBlock], true
}

// ReadAt copies up to len(dst) bytes from i starting at offset into dst,
// returning the number of bytes actually copied. It never mutates disk
// state and stops early at end-of-file.
func (i *Inode) ReadAt(dst []byte, offset int64) (int, error) {
	return ReadSector(i.cache, i.sector, dst, offset)
}

// ReadSector performs the same read as (*Inode).ReadAt directly against a
// disk sector, without needing a Table or an open Inode handle. It exists
// so bootstrap code (mounting, reading the free-map's own inode before a
// Table can be fully constructed) can read inode data without a
// chicken-and-egg dependency on an allocator.
func ReadSector(cache *sectorcache.Cache, sector uint32, dst []byte, offset int64) (int, error) {
	var buf [blockdev.SectorSize]byte
	if err := cache.Read(sector, buf[:]); err != nil {
		return 0, err
	}
	d, err := Decode(buf[:])
	if err != nil {
		return 0, err
	}

	var bounce [blockdev.SectorSize]byte
	size := int64(len(dst))
	read := int64(0)
	for size > 0 {
		dataSector, ok := byteToSector(d, cache, offset)
		if !ok {
			break
		}
		sectorOfs := offset % blockdev.SectorSize
		inodeLeft := int64(d.Length) - offset
		sectorLeft := int64(blockdev.SectorSize) - sectorOfs
		minLeft := inodeLeft
		if sectorLeft < minLeft {
			minLeft = sectorLeft
		}
		chunk := size
		if minLeft < chunk {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		if sectorOfs == 0 && chunk == blockdev.SectorSize {
			if err := cache.Read(dataSector, dst[read:read+chunk]); err != nil {
				break
			}
		} else {
			if err := cache.Read(dataSector, bounce[:]); err != nil {
				break
			}
			copy(dst[read:read+chunk], bounce[sectorOfs:sectorOfs+chunk])
		}

		size -= chunk
		offset += chunk
		read += chunk
	}
	return int(read), nil
}

// WriteAt writes len(src) bytes from src into i starting at offset,
// growing the inode first if the write extends past the current length.
// It returns the number of bytes actually written, which is 0 if writes
// are currently denied (DenyWrite) or if growth fails for lack of space.
func (i *Inode) WriteAt(src []byte, offset int64) (int, error) {
	i.mu.Lock()
	denied := i.denyWriteCount > 0
	i.mu.Unlock()
	if denied {
		return 0, nil
	}

	var buf [blockdev.SectorSize]byte
	if err := i.cache.Read(i.sector, buf[:]); err != nil {
		return 0, err
	}
	d, err := Decode(buf[:])
	if err != nil {
		return 0, err
	}

	size := int64(len(src))
	if int64(d.Length) < offset+size {
		i.resizeLock.Lock()
		ok := Resize(d, offset+size, i.cache, i.alloc)
		if ok {
			if err := i.cache.Write(i.sector, d.Encode()); err != nil {
				i.resizeLock.Unlock()
				return 0, err
			}
		}
		i.resizeLock.Unlock()
		if !ok {
			return 0, nil
		}
	}

	var bounce [blockdev.SectorSize]byte
	written := int64(0)
	for size > 0 {
		sector, ok := byteToSector(d, i.cache, offset)
		if !ok {
			break
		}
		sectorOfs := offset % blockdev.SectorSize
		inodeLeft := int64(d.Length) - offset
		sectorLeft := int64(blockdev.SectorSize) - sectorOfs
		minLeft := inodeLeft
		if sectorLeft < minLeft {
			minLeft = sectorLeft
		}
		chunk := size
		if minLeft < chunk {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		if sectorOfs == 0 && chunk == blockdev.SectorSize {
			if err := i.cache.Write(sector, src[written:written+chunk]); err != nil {
				break
			}
		} else {
			if sectorOfs > 0 || chunk < sectorLeft {
				if err := i.cache.Read(sector, bounce[:]); err != nil {
					break
				}
			} else {
				for b := range bounce {
					bounce[b] = 0
				}
			}
			copy(bounce[sectorOfs:sectorOfs+chunk], src[written:written+chunk])
			if err := i.cache.Write(sector, bounce[:]); err != nil {
				break
			}
		}

		size -= chunk
		offset += chunk
		written += chunk
	}
	return int(written), nil
}
