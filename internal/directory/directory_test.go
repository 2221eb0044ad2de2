package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/inode"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

func newTable(t *testing.T, nsectors uint32) *inode.Table {
	t.Helper()
	dev := blockdev.NewMemory(nsectors)
	cache := sectorcache.New(dev, int(nsectors))
	fm := freemap.New(nsectors, directory.RootSector)
	return inode.NewTable(cache, fm)
}

func TestRootHasSelfReferentialDotDot(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))

	root := directory.OpenRoot(table)
	defer directory.Close(root)

	target, ok := directory.Lookup(table, root, "..")
	require.True(t, ok)
	defer target.Close()
	assert.Equal(t, uint32(directory.RootSector), target.Sector())
}

func TestAddLookupRemove(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	require.True(t, inode.Create(table, 10, 0, false))
	require.True(t, directory.Add(root, "hello.txt", 10))

	found, ok := directory.Lookup(table, root, "hello.txt")
	require.True(t, ok)
	found.Close()

	require.True(t, directory.Remove(table, root, "hello.txt"))
	_, ok = directory.Lookup(table, root, "hello.txt")
	assert.False(t, ok)
}

func TestAddRejectsDuplicate(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	require.True(t, inode.Create(table, 10, 0, false))
	require.True(t, directory.Add(root, "a", 10))

	require.True(t, inode.Create(table, 11, 0, false))
	assert.False(t, directory.Add(root, "a", 11))
}

func TestAddRejectsOversizeName(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	assert.False(t, directory.Add(root, "this-name-is-too-long", 10))
}

func TestRemoveTombstonesRatherThanShrinks(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	require.True(t, inode.Create(table, 10, 0, false))
	require.True(t, directory.Add(root, "a", 10))
	lengthBefore, err := root.Length()
	require.NoError(t, err)

	require.True(t, directory.Remove(table, root, "a"))
	lengthAfter, err := root.Length()
	require.NoError(t, err)
	assert.Equal(t, lengthBefore, lengthAfter)
}

func TestReadDirSkipsTombstonesIncludesDotDot(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	require.True(t, inode.Create(table, 10, 0, false))
	require.True(t, inode.Create(table, 11, 0, false))
	require.True(t, directory.Add(root, "a", 10))
	require.True(t, directory.Add(root, "b", 11))
	require.True(t, directory.Remove(table, root, "a"))

	names := map[string]bool{}
	for {
		name, ok := directory.ReadDir(root)
		if !ok {
			break
		}
		names[name] = true
	}
	assert.True(t, names[".."])
	assert.True(t, names["b"])
	assert.False(t, names["a"])
}

func TestEntryCountExcludesDotDot(t *testing.T) {
	table := newTable(t, 256)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	defer directory.Close(root)

	count, err := directory.EntryCount(root)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.True(t, inode.Create(table, 10, 0, false))
	require.True(t, directory.Add(root, "a", 10))
	count, err = directory.EntryCount(root)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
