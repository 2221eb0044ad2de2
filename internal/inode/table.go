package inode

import (
	"sync"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

// Inode is the in-memory handle for a disk inode, identified by its disk
// sector (spec §3: "at any moment, at most one in-memory inode exists per
// disk sector; all clients opening that sector share it").
type Inode struct {
	sector uint32

	mu             sync.Mutex
	openCount      int
	removed        bool
	denyWriteCount int

	table      *Table
	cache      *sectorcache.Cache
	alloc      *freemap.FreeMap
	resizeLock *sync.Mutex
}

// Sector returns the disk sector this inode occupies (its inumber).
func (i *Inode) Sector() uint32 {
	return i.sector
}

// Table is the process-wide open-inode registry: insertion on first open,
// removal when open count reaches zero, guarded by a single lock (spec
// §4.3/§5).
//
// Per the ordering discipline fixed in spec §5/§9, the table lock is never
// held while acquiring an inode's own lock: Open releases the table lock
// before incrementing an already-open inode's count.
type Table struct {
	mu    sync.Mutex
	open  map[uint32]*Inode
	cache *sectorcache.Cache
	alloc *freemap.FreeMap
	// resizeLock is the single global lock serializing all inode_resize
	// calls, shared by every inode produced by this table.
	resizeLock sync.Mutex
}

// NewTable creates an open-inode table bound to cache and alloc.
func NewTable(cache *sectorcache.Cache, alloc *freemap.FreeMap) *Table {
	return &Table{
		open:  make(map[uint32]*Inode),
		cache: cache,
		alloc: alloc,
	}
}

// Open returns the shared in-memory inode for sector, incrementing its
// open count, creating it on first open. It never reads the disk inode
// itself — the first cache access happens lazily on first data access.
func (t *Table) Open(sector uint32) *Inode {
	t.mu.Lock()
	if existing, ok := t.open[sector]; ok {
		t.mu.Unlock()
		existing.reopen()
		return existing
	}

	n := &Inode{
		sector:     sector,
		openCount:  1,
		table:      t,
		cache:      t.cache,
		alloc:      t.alloc,
		resizeLock: &t.resizeLock,
	}
	t.open[sector] = n
	t.mu.Unlock()
	return n
}

func (t *Table) remove(sector uint32) {
	t.mu.Lock()
	delete(t.open, sector)
	t.mu.Unlock()
}

// Len reports how many inodes are currently open, for tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// reopen increments i's open count. The table lock is never held here,
// per the ordering fix in spec §5/§9.
func (i *Inode) reopen() *Inode {
	i.mu.Lock()
	i.openCount++
	i.mu.Unlock()
	return i
}

// Reopen is the public +1-reference operation (used e.g. by the directory
// layer's dir_reopen).
func (i *Inode) Reopen() *Inode {
	return i.reopen()
}

// Close decrements i's open count. On the transition to zero it removes i
// from its table and, if i was marked removed, frees every sector the
// inode owns (by resizing to 0) and releases the inode's own sector.
func (i *Inode) Close() error {
	i.mu.Lock()
	i.openCount--
	last := i.openCount == 0
	removed := i.removed
	i.mu.Unlock()

	if !last {
		return nil
	}

	i.table.remove(i.sector)

	if !removed {
		return nil
	}

	var buf [blockdev.SectorSize]byte
	if err := i.cache.Read(i.sector, buf[:]); err != nil {
		return err
	}
	d, err := Decode(buf[:])
	if err != nil {
		return err
	}
	i.resizeLock.Lock()
	Resize(d, 0, i.cache, i.alloc)
	i.resizeLock.Unlock()
	i.alloc.Release(i.sector)
	return nil
}

// Remove marks i to be deleted once the last opener closes it (deferred
// destruction, spec §4.3).
func (i *Inode) Remove() {
	i.mu.Lock()
	i.removed = true
	i.mu.Unlock()
}

// DenyWrite disables writes to i. It may be called at most once per opener
// without a matching AllowWrite. Both DenyWrite and AllowWrite take i's own
// lock, fixing the asymmetry noted in spec §9.
func (i *Inode) DenyWrite() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.denyWriteCount++
	if i.denyWriteCount > i.openCount {
		panic("inode: deny_write_cnt exceeds open_cnt")
	}
}

// AllowWrite re-enables writes previously denied with DenyWrite.
func (i *Inode) AllowWrite() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.denyWriteCount <= 0 {
		panic("inode: allow_write called without a matching deny_write")
	}
	i.denyWriteCount--
}

// WriteDenied reports whether a DenyWrite on i is currently outstanding.
func (i *Inode) WriteDenied() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.denyWriteCount > 0
}

// OpenCount returns the number of active openers of i.
func (i *Inode) OpenCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.openCount
}

// Length returns the length, in bytes, of i's data, re-reading the on-disk
// image through the cache on every call (spec §4.3/§9: the disk is the
// source of truth).
func (i *Inode) Length() (int64, error) {
	d, err := i.loadDisk()
	if err != nil {
		return 0, err
	}
	return int64(d.Length), nil
}

// IsDir reports whether i represents a directory.
func (i *Inode) IsDir() (bool, error) {
	d, err := i.loadDisk()
	if err != nil {
		return false, err
	}
	return d.IsDir, nil
}

func (i *Inode) loadDisk() (*Disk, error) {
	var buf [blockdev.SectorSize]byte
	if err := i.cache.Read(i.sector, buf[:]); err != nil {
		return nil, err
	}
	return Decode(buf[:])
}

// Create initializes a fresh disk inode of length bytes (is-dir as given)
// at sector on t's device, allocating whatever data/index sectors that
// length requires.
func Create(t *Table, sector uint32, length int64, isDir bool) bool {
	d := &Disk{IsDir: isDir}
	t.resizeLock.Lock()
	ok := Resize(d, length, t.cache, t.alloc)
	t.resizeLock.Unlock()
	if !ok {
		return false
	}
	if err := t.cache.Write(sector, d.Encode()); err != nil {
		return false
	}
	return true
}
