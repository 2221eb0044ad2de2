// Package inode implements the on-disk inode format, multi-level index,
// in-place growth, and the open-inode table of spec §4.3: one sector per
// inode (100 direct + 1 indirect + 1 double-indirect pointer, length,
// is-dir flag, magic number), read/written through a sectorcache.Cache,
// and allocated/freed through a freemap.FreeMap.
package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/dragonfs/sectorfs/internal/blockdev"
)

const (
	// DirectPointers is the number of direct sector pointers in a disk
	// inode.
	DirectPointers = 100
	// PointersPerBlock is the number of sector pointers held in one
	// indirect (or one slot of the double-indirect) block.
	PointersPerBlock = 128
	// Magic identifies a valid disk inode sector.
	Magic = uint32(0x494e4f44)

	// MaxFileSize is the largest length a file can reach: 100 direct
	// sectors, 128 single-indirect sectors, and 128*128 double-indirect
	// sectors, each 512 bytes.
	MaxFileSize = int64(DirectPointers+PointersPerBlock+PointersPerBlock*PointersPerBlock) * blockdev.SectorSize
)

// Disk is the exact on-disk inode layout of spec §3/§6: little-endian,
// pointer value 0 means "not allocated", zero-padded to one sector.
type Disk struct {
	Direct         [DirectPointers]uint32
	Indirect       uint32
	DoubleIndirect uint32
	Length         int32
	IsDir          bool
}

// Encode serializes d into exactly blockdev.SectorSize bytes.
func (d *Disk) Encode() []byte {
	buf := make([]byte, blockdev.SectorSize)
	off := 0
	for i := 0; i < DirectPointers; i++ {
		binary.LittleEndian.PutUint32(buf[off:], d.Direct[i])
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], d.Indirect)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], d.DoubleIndirect)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.Length))
	off += 4
	if d.IsDir {
		buf[off] = 1
	}
	off += 1
	binary.LittleEndian.PutUint32(buf[off:], Magic)
	// remainder already zero from make([]byte, ...)
	return buf
}

// Decode parses a sector previously produced by Encode, validating the
// magic number.
func Decode(buf []byte) (*Disk, error) {
	if len(buf) != blockdev.SectorSize {
		return nil, fmt.Errorf("inode: sector must be %d bytes, got %d", blockdev.SectorSize, len(buf))
	}
	d := &Disk{}
	off := 0
	for i := 0; i < DirectPointers; i++ {
		d.Direct[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	d.Indirect = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	d.DoubleIndirect = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	d.Length = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	d.IsDir = buf[off] != 0
	off += 1
	magic := binary.LittleEndian.Uint32(buf[off:])
	if magic != Magic {
		return nil, fmt.Errorf("inode: magic mismatch, got %#x", magic)
	}
	return d, nil
}
