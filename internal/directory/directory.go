// Package directory implements the hierarchical directory layer of spec
// §4.4: a regular inode with is-dir set whose data is a dense sequence of
// fixed-size entries. Entry 0 of every directory is always ".." (in-use),
// pointing at the parent (the root's parent is itself).
package directory

import (
	"sync"

	"github.com/dragonfs/sectorfs/internal/inode"
)

const (
	// MaxNameLen is the longest a single path component / directory entry
	// name may be.
	MaxNameLen = 14
	// entrySize is {in_use bool, name[15] NUL-terminated, sector uint32}.
	entrySize = 1 + (MaxNameLen + 1) + 4
)

type entry struct {
	inUse  bool
	name   string
	sector uint32
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entrySize)
	if e.inUse {
		buf[0] = 1
	}
	copy(buf[1:1+MaxNameLen], e.name)
	// buf[1+len(name)] stays 0, acting as the NUL terminator.
	s := e.sector
	buf[1+MaxNameLen+1] = byte(s)
	buf[1+MaxNameLen+2] = byte(s >> 8)
	buf[1+MaxNameLen+3] = byte(s >> 16)
	buf[1+MaxNameLen+4] = byte(s >> 24)
	return buf
}

func decodeEntry(buf []byte) entry {
	nameBytes := buf[1 : 1+MaxNameLen+1]
	n := 0
	for n < len(nameBytes) && nameBytes[n] != 0 {
		n++
	}
	s := uint32(buf[1+MaxNameLen+1]) | uint32(buf[1+MaxNameLen+2])<<8 |
		uint32(buf[1+MaxNameLen+3])<<16 | uint32(buf[1+MaxNameLen+4])<<24
	return entry{
		inUse:  buf[0] != 0,
		name:   string(nameBytes[:n]),
		sector: s,
	}
}

// Dir is an open directory handle: a reference to its inode plus the
// caller's own ReadDir iteration position.
type Dir struct {
	node *inode.Inode
	pos  int64
}

// Create initializes a fresh directory inode at sector with parentSector
// as its ".." entry, preallocating room for at least initialEntries
// entries (beyond the mandatory ".." slot).
func Create(t *inode.Table, sector uint32, initialEntries int, parentSector uint32) bool {
	capacity := initialEntries + 1
	if capacity < 1 {
		capacity = 1
	}
	if !inode.Create(t, sector, int64(capacity)*entrySize, true) {
		return false
	}
	n := t.Open(sector)
	defer n.Close()
	dotdot := entry{inUse: true, name: "..", sector: parentSector}
	w, err := n.WriteAt(encodeEntry(dotdot), 0)
	return err == nil && w == entrySize
}

// Open wraps an already-opened inode as a directory handle. The caller
// retains responsibility for the inode's reference (Close on the returned
// Dir closes it).
func Open(n *inode.Inode) *Dir {
	return &Dir{node: n}
}

// OpenRoot opens the root directory (sector 1).
func OpenRoot(t *inode.Table) *Dir {
	return &Dir{node: t.Open(RootSector)}
}

// RootSector is the fixed sector of the root directory's inode.
const RootSector = 1

// Reopen returns a new Dir handle sharing the same inode, with its own
// independent ReadDir position, incrementing the inode's open count.
func Reopen(d *Dir) *Dir {
	return &Dir{node: d.node.Reopen()}
}

// Close closes d's underlying inode.
func Close(d *Dir) error {
	return d.node.Close()
}

// Inode returns the directory's underlying inode.
func (d *Dir) Inode() *inode.Inode {
	return d.node
}

// Length returns the byte length of the directory's entry table.
func (d *Dir) Length() (int64, error) {
	return d.node.Length()
}

func (d *Dir) forEach(fn func(idx int64, e entry) (stop bool)) error {
	length, err := d.node.Length()
	if err != nil {
		return err
	}
	buf := make([]byte, entrySize)
	for off := int64(0); off+entrySize <= length; off += entrySize {
		n, err := d.node.ReadAt(buf, off)
		if err != nil {
			return err
		}
		if n < entrySize {
			break
		}
		if fn(off, decodeEntry(buf)) {
			return nil
		}
	}
	return nil
}

// Lookup scans d's entries for name (including ".." if explicitly
// requested) and, on a match, opens and returns its inode. The caller must
// Close the returned inode.
func Lookup(t *inode.Table, d *Dir, name string) (*inode.Inode, bool) {
	var found uint32
	var ok bool
	d.forEach(func(_ int64, e entry) bool {
		if e.inUse && e.name == name {
			found = e.sector
			ok = true
			return true
		}
		return false
	})
	if !ok {
		return nil, false
	}
	return t.Open(found), true
}

// addMu serializes Add across all handles, so concurrent adds never pick the
// same free slot.
var addMu sync.Mutex

// Add appends a new entry {name -> sector} to d. It refuses an empty name,
// a name longer than MaxNameLen, or a name that already exists.
func Add(d *Dir, name string, sector uint32) bool {
	if len(name) == 0 || len(name) > MaxNameLen {
		return false
	}
	addMu.Lock()
	defer addMu.Unlock()
	exists := false
	length, err := d.node.Length()
	if err != nil {
		return false
	}
	d.forEach(func(_ int64, e entry) bool {
		if e.inUse && e.name == name {
			exists = true
			return true
		}
		return false
	})
	if exists {
		return false
	}
	// Reuse a tombstoned slot if one exists, else append.
	var reuseOff int64 = -1
	d.forEach(func(off int64, e entry) bool {
		if !e.inUse {
			reuseOff = off
			return true
		}
		return false
	})
	off := length
	if reuseOff >= 0 {
		off = reuseOff
	}
	buf := encodeEntry(entry{inUse: true, name: name, sector: sector})
	n, err := d.node.WriteAt(buf, off)
	return err == nil && n == entrySize
}

// Remove marks the entry named name as not-in-use (a tombstone; the
// directory file is never shrunk) and marks its target inode removed.
func Remove(t *inode.Table, d *Dir, name string) bool {
	var targetOff int64 = -1
	var targetSector uint32
	d.forEach(func(off int64, e entry) bool {
		if e.inUse && e.name == name {
			targetOff = off
			targetSector = e.sector
			return true
		}
		return false
	})
	if targetOff < 0 {
		return false
	}

	target := t.Open(targetSector)
	target.Remove()
	target.Close()

	buf := encodeEntry(entry{inUse: false})
	n, err := d.node.WriteAt(buf, targetOff)
	return err == nil && n == entrySize
}

// ReadDir advances d's iterator to the next in-use entry and returns its
// name. It does not suppress "." or ".."; a higher layer (the facade) does
// that.
func ReadDir(d *Dir) (string, bool) {
	length, err := d.node.Length()
	if err != nil {
		return "", false
	}
	buf := make([]byte, entrySize)
	for d.pos+entrySize <= length {
		off := d.pos
		d.pos += entrySize
		n, err := d.node.ReadAt(buf, off)
		if err != nil || n < entrySize {
			return "", false
		}
		e := decodeEntry(buf)
		if e.inUse {
			return e.name, true
		}
	}
	return "", false
}

// EntryCount returns the number of in-use entries excluding "..".
func EntryCount(d *Dir) (int, error) {
	count := 0
	err := d.forEach(func(_ int64, e entry) bool {
		if e.inUse && e.name != ".." {
			count++
		}
		return false
	})
	return count, err
}
