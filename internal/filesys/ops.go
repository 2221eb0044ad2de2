package filesys

import (
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/diskerr"
	"github.com/dragonfs/sectorfs/internal/inode"
)

// Create allocates a new sector-backed inode of size bytes and adds it to
// its parent directory under its final path component. It fails if the
// name already exists, the parent cannot be resolved, or the device is
// full (spec §4.6 filesys_create).
func (fs *FS) Create(cwd *directory.Dir, path string, size int64) bool {
	return fs.createErr(cwd, path, size) == nil
}

func (fs *FS) createErr(cwd *directory.Dir, path string, size int64) error {
	parent, name, ok := fs.resolve(cwd, path)
	if !ok {
		return diskerr.ErrInvalidPath
	}
	defer directory.Close(parent)
	if name == "." {
		// path resolved to an existing directory itself: nothing new to
		// create at that name.
		return diskerr.ErrExists
	}

	if existing, found := directory.Lookup(fs.table, parent, name); found {
		existing.Close()
		return diskerr.ErrExists
	}

	sector, ok := fs.alloc.Allocate()
	if !ok {
		return diskerr.ErrNoSpace
	}
	if !inode.Create(fs.table, sector, size, false) {
		fs.alloc.Release(sector)
		return diskerr.ErrNoSpace
	}
	if !directory.Add(parent, name, sector) {
		destroy(fs, sector)
		return diskerr.ErrInvalidPath
	}
	return nil
}

// Open resolves path to a non-directory inode and returns an open file
// handle over it. It fails if the target is a directory (spec §4.6
// filesys_open).
func (fs *FS) Open(cwd *directory.Dir, path string) (*File, bool) {
	f, err := fs.openErr(cwd, path)
	return f, err == nil
}

func (fs *FS) openErr(cwd *directory.Dir, path string) (*File, error) {
	target, err := fs.openTargetErr(cwd, path)
	if err != nil {
		return nil, err
	}
	isDir, ierr := target.IsDir()
	if ierr != nil {
		target.Close()
		return nil, diskerr.Wrap(ierr, "open")
	}
	if isDir {
		target.Close()
		return nil, diskerr.ErrInvalidPath
	}
	return openFile(target), nil
}

// OpenDir resolves path to a directory inode and returns an open directory
// handle over it (spec §4.6 filesys_open_dir).
func (fs *FS) OpenDir(cwd *directory.Dir, path string) (*directory.Dir, bool) {
	d, err := fs.openDirErr(cwd, path)
	return d, err == nil
}

func (fs *FS) openDirErr(cwd *directory.Dir, path string) (*directory.Dir, error) {
	target, err := fs.openTargetErr(cwd, path)
	if err != nil {
		return nil, err
	}
	isDir, ierr := target.IsDir()
	if ierr != nil {
		target.Close()
		return nil, diskerr.Wrap(ierr, "open_dir")
	}
	if !isDir {
		target.Close()
		return nil, diskerr.ErrInvalidPath
	}
	return directory.Open(target), nil
}

// Remove resolves path and removes the target: a file is removed
// unconditionally; a directory is removed only if it has no entries (other
// than "..") and no opener besides the reference taken for this check
// (spec §4.6 filesys_remove).
func (fs *FS) Remove(cwd *directory.Dir, path string) bool {
	return fs.removeErr(cwd, path) == nil
}

func (fs *FS) removeErr(cwd *directory.Dir, path string) error {
	parent, name, ok := fs.resolve(cwd, path)
	if !ok {
		return diskerr.ErrInvalidPath
	}
	defer directory.Close(parent)
	if name == "." {
		return diskerr.ErrInvalidPath
	}

	target, found := directory.Lookup(fs.table, parent, name)
	if !found {
		return diskerr.ErrNotFound
	}

	isDir, err := target.IsDir()
	if err != nil {
		target.Close()
		return diskerr.Wrap(err, "remove")
	}
	if isDir {
		d := directory.Open(target)
		count, countErr := directory.EntryCount(d)
		openCount := target.OpenCount()
		directory.Close(d)
		if countErr != nil {
			return diskerr.Wrap(countErr, "remove")
		}
		if count != 0 {
			return diskerr.ErrNotEmpty
		}
		if openCount != 1 {
			return diskerr.ErrInUse
		}
	} else {
		target.Close()
	}

	if !directory.Remove(fs.table, parent, name) {
		return diskerr.ErrNotFound
	}
	return nil
}

// Mkdir creates a new, empty directory at path. It rejects a name that
// already exists before allocating a sector, mirroring filesys_mkdir's
// Lookup-first guard rather than relying on dir_add's own duplicate check
// (which would otherwise allocate a sector only to roll it back on a
// duplicate name).
func (fs *FS) Mkdir(cwd *directory.Dir, path string) bool {
	return fs.mkdirErr(cwd, path) == nil
}

func (fs *FS) mkdirErr(cwd *directory.Dir, path string) error {
	parent, name, ok := fs.resolve(cwd, path)
	if !ok {
		return diskerr.ErrInvalidPath
	}
	defer directory.Close(parent)
	if name == "." || len(name) == 0 {
		return diskerr.ErrInvalidPath
	}

	if existing, found := directory.Lookup(fs.table, parent, name); found {
		existing.Close()
		return diskerr.ErrExists
	}

	sector, ok := fs.alloc.Allocate()
	if !ok {
		return diskerr.ErrNoSpace
	}
	parentSector := parent.Inode().Sector()
	if !directory.Create(fs.table, sector, 0, parentSector) {
		fs.alloc.Release(sector)
		return diskerr.ErrNoSpace
	}
	if !directory.Add(parent, name, sector) {
		destroy(fs, sector)
		return diskerr.ErrInvalidPath
	}
	return nil
}

// Lookup resolves path and reports whether it exists and, if so, whether
// it names a directory (spec §4.6 filesys_lookup).
func (fs *FS) Lookup(cwd *directory.Dir, path string) (isDir bool, ok bool) {
	isDir, err := fs.lookupErr(cwd, path)
	return isDir, err == nil
}

func (fs *FS) lookupErr(cwd *directory.Dir, path string) (bool, error) {
	parent, name, ok := fs.resolve(cwd, path)
	if !ok {
		return false, diskerr.ErrInvalidPath
	}
	defer directory.Close(parent)
	if name == "." {
		return true, nil
	}

	target, found := directory.Lookup(fs.table, parent, name)
	if !found {
		return false, diskerr.ErrNotFound
	}
	defer target.Close()

	dir, err := target.IsDir()
	if err != nil {
		return false, diskerr.Wrap(err, "lookup")
	}
	return dir, nil
}

// openTargetErr resolves path to its final inode, whatever kind it is,
// handling the "path names the resolved directory itself" case shared by
// Open and OpenDir.
func (fs *FS) openTargetErr(cwd *directory.Dir, path string) (*inode.Inode, error) {
	parent, name, ok := fs.resolve(cwd, path)
	if !ok {
		return nil, diskerr.ErrInvalidPath
	}
	if name == "." {
		// parent's reference is adopted by the returned handle directly;
		// the Dir wrapper itself holds no other resource to release.
		return parent.Inode(), nil
	}
	defer directory.Close(parent)

	target, found := directory.Lookup(fs.table, parent, name)
	if !found {
		return nil, diskerr.ErrNotFound
	}
	return target, nil
}

// destroy opens sector, marks it removed, and closes it, freeing its
// sectors back to the free-map once the transient reference drops to zero.
func destroy(fs *FS, sector uint32) {
	n := fs.table.Open(sector)
	n.Remove()
	n.Close()
}
