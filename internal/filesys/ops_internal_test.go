package filesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/diskerr"
)

func newFS(t *testing.T, nsectors uint32) *FS {
	t.Helper()
	dev := blockdev.NewMemory(nsectors)
	fs, err := Format(dev, int(nsectors))
	require.NoError(t, err)
	return fs
}

func TestCreateErrExists(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.createErr(root, "/f", 0))
	assert.True(t, diskerr.Is(fs.createErr(root, "/f", 0), diskerr.ErrExists))
}

func TestCreateErrNoSpace(t *testing.T) {
	fs := newFS(t, 4)
	root := fs.RootDir()
	defer root.Inode().Close()

	assert.True(t, diskerr.Is(fs.createErr(root, "/f", 0), diskerr.ErrNoSpace))
}

func TestCreateErrInvalidPathOnMissingParent(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	assert.True(t, diskerr.Is(fs.createErr(root, "/nope/x", 0), diskerr.ErrInvalidPath))
}

func TestOpenErrNotFound(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	_, err := fs.openErr(root, "/missing")
	assert.True(t, diskerr.Is(err, diskerr.ErrNotFound))
}

func TestOpenErrInvalidPathOnDirectory(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.mkdirErr(root, "/d"))
	_, err := fs.openErr(root, "/d")
	assert.True(t, diskerr.Is(err, diskerr.ErrInvalidPath))
}

func TestOpenDirErrInvalidPathOnFile(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.createErr(root, "/f", 0))
	_, err := fs.openDirErr(root, "/f")
	assert.True(t, diskerr.Is(err, diskerr.ErrInvalidPath))
}

func TestRemoveErrNotEmpty(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.mkdirErr(root, "/d"))
	require.NoError(t, fs.createErr(root, "/d/f", 0))
	assert.True(t, diskerr.Is(fs.removeErr(root, "/d"), diskerr.ErrNotEmpty))
}

func TestRemoveErrInUse(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.mkdirErr(root, "/d"))
	handle, err := fs.openDirErr(root, "/d")
	require.NoError(t, err)

	assert.True(t, diskerr.Is(fs.removeErr(root, "/d"), diskerr.ErrInUse))

	require.NoError(t, handle.Inode().Close())
}

func TestRemoveErrNotFound(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	assert.True(t, diskerr.Is(fs.removeErr(root, "/missing"), diskerr.ErrNotFound))
}

func TestMkdirErrExists(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.mkdirErr(root, "/d"))
	assert.True(t, diskerr.Is(fs.mkdirErr(root, "/d"), diskerr.ErrExists))
}

func TestLookupErrNotFound(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	_, err := fs.lookupErr(root, "/missing")
	assert.True(t, diskerr.Is(err, diskerr.ErrNotFound))
}

func TestWriteDeniedErr(t *testing.T) {
	fs := newFS(t, 4096)
	root := fs.RootDir()
	defer root.Inode().Close()

	require.NoError(t, fs.createErr(root, "/f", 0))
	f, err := fs.openErr(root, "/f")
	require.NoError(t, err)
	defer f.Close()

	f.DenyWrite()
	_, werr := f.WriteAt([]byte{1}, 0)
	assert.True(t, diskerr.Is(werr, diskerr.ErrWriteDenied))
	f.AllowWrite()
}
