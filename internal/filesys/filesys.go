// Package filesys binds the resolver, directory, inode, cache and free-map
// layers into the facade described in spec §4.6: Format/Mount bring the
// filesystem up, Create/Open/OpenDir/Remove/Mkdir/Lookup are the operations
// a caller drives, and Done tears it back down.
package filesys

import (
	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/diskerr"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/inode"
	"github.com/dragonfs/sectorfs/internal/pathresolver"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

const (
	// freeMapSector is the fixed inode sector holding the free-map's own
	// bitmap data, mirroring inode sector 0 in spec §4.1.
	freeMapSector = 0
	// rootInitialEntries preallocates room for a handful of root-directory
	// entries beyond the mandatory "..", avoiding an immediate growth on
	// the first few Create/Mkdir calls against a freshly formatted disk.
	rootInitialEntries = 16
)

// FS is an assembled, ready-to-use filesystem instance bound to one device.
type FS struct {
	dev        blockdev.Device
	cache      *sectorcache.Cache
	alloc      *freemap.FreeMap
	table      *inode.Table
	numSectors uint32
}

// Format initializes a fresh filesystem on dev: it reserves the free-map's
// own sector and the root directory's sector, creates both, and persists
// the resulting free-map bitmap before returning.
func Format(dev blockdev.Device, cacheSize int) (*FS, error) {
	cache := sectorcache.New(dev, cacheSize)
	n := dev.NumSectors()
	alloc := freemap.New(n, freeMapSector, directory.RootSector)
	table := inode.NewTable(cache, alloc)

	if !inode.Create(table, freeMapSector, int64(freemap.ByteLen(n)), false) {
		return nil, diskerr.ErrNoSpace
	}
	if !directory.Create(table, directory.RootSector, rootInitialEntries, directory.RootSector) {
		return nil, diskerr.ErrNoSpace
	}

	fs := &FS{dev: dev, cache: cache, alloc: alloc, table: table, numSectors: n}
	if err := fs.persistFreeMap(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Mount opens an already-formatted filesystem on dev, reconstructing the
// free-map from the bitmap it finds in the free-map's inode. Constructing
// the real *freemap.FreeMap before the inode.Table exists is a
// chicken-and-egg problem (a Table needs an allocator); inode.ReadSector
// reads the free-map's own inode directly against the cache, with no Table
// or allocator involved, to break that cycle.
func Mount(dev blockdev.Device, cacheSize int) (*FS, error) {
	cache := sectorcache.New(dev, cacheSize)
	n := dev.NumSectors()

	data := make([]byte, freemap.ByteLen(n))
	read, err := inode.ReadSector(cache, freeMapSector, data, 0)
	if err != nil {
		return nil, diskerr.Wrap(err, "reading free-map inode")
	}
	if read < len(data) {
		return nil, diskerr.ErrInvalidPath
	}

	alloc := freemap.Unmarshal(n, data)
	table := inode.NewTable(cache, alloc)
	return &FS{dev: dev, cache: cache, alloc: alloc, table: table, numSectors: n}, nil
}

// Done persists the free-map bitmap and flushes every dirty cache entry to
// the device, mirroring filesys_done/free_map_close: the free-map is
// written back once at shutdown, not on every Allocate/Release.
func (fs *FS) Done() error {
	if err := fs.persistFreeMap(); err != nil {
		return err
	}
	return fs.cache.Flush()
}

func (fs *FS) persistFreeMap() error {
	n := fs.table.Open(freeMapSector)
	defer n.Close()
	_, err := n.WriteAt(fs.alloc.Marshal(), 0)
	return err
}

// RootDir opens a fresh handle on the filesystem root, for seeding a new
// process's working-directory context.
func (fs *FS) RootDir() *directory.Dir {
	return directory.OpenRoot(fs.table)
}

// Table exposes the open-inode table, for tests that assert on open-count
// bookkeeping.
func (fs *FS) Table() *inode.Table {
	return fs.table
}

// Cache exposes the sector cache, for tests that assert on hit/miss/
// write-count behavior.
func (fs *FS) Cache() *sectorcache.Cache {
	return fs.cache
}

// FreeMap exposes the free-sector bitmap, for tests that assert free-sector
// counts are preserved across a format/mount cycle.
func (fs *FS) FreeMap() *freemap.FreeMap {
	return fs.alloc
}

func (fs *FS) resolve(cwd *directory.Dir, path string) (*directory.Dir, string, bool) {
	return pathresolver.Resolve(fs.table, cwd, path)
}
