package inode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/inode"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
)

// newTable builds a table over a fresh device; reserved lists the inode
// sectors a test places by hand, so growth never allocates them as data.
func newTable(t *testing.T, nsectors uint32, reserved ...uint32) (*inode.Table, *freemap.FreeMap) {
	t.Helper()
	dev := blockdev.NewMemory(nsectors)
	cache := sectorcache.New(dev, int(nsectors))
	fm := freemap.New(nsectors, reserved...)
	return inode.NewTable(cache, fm), fm
}

func TestCreateOpenCloseLifecycle(t *testing.T) {
	table, _ := newTable(t, 512)

	require.True(t, inode.Create(table, 5, 0, false))
	n := table.Open(5)
	assert.Equal(t, 1, n.OpenCount())

	n2 := table.Open(5)
	assert.Same(t, n, n2)
	assert.Equal(t, 2, n.OpenCount())

	require.NoError(t, n.Close())
	assert.Equal(t, 1, table.Len())
	require.NoError(t, n2.Close())
	assert.Equal(t, 0, table.Len())
}

// TestExtensionAcrossIndirectBoundary reproduces spec §8 scenario 1: a
// write of 512*105 bytes occupies 100 direct and 5 indirect pointers, and
// reading it back yields the written buffer byte-for-byte.
func TestExtensionAcrossIndirectBoundary(t *testing.T) {
	table, _ := newTable(t, 4096, 20)
	require.True(t, inode.Create(table, 20, 0, false))
	n := table.Open(20)
	defer n.Close()

	size := 105 * blockdev.SectorSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	written, err := n.WriteAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, size, written)

	length, err := n.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(53760), length)

	got := make([]byte, size)
	read, err := n.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, size, read)
	assert.Equal(t, data, got)
}

// TestZeroFillOnGrowth reproduces the spec §9 open-question fix: writing
// past the current length zero-fills the gap, and the grown region reads
// as zero even before ever being explicitly written.
func TestZeroFillOnGrowth(t *testing.T) {
	table, _ := newTable(t, 512)
	require.True(t, inode.Create(table, 7, 0, false))
	n := table.Open(7)
	defer n.Close()

	tail := []byte{1, 2, 3, 4}
	_, err := n.WriteAt(tail, 2000)
	require.NoError(t, err)

	gap := make([]byte, 2000)
	read, err := n.ReadAt(gap, 0)
	require.NoError(t, err)
	assert.Equal(t, 2000, read)
	for _, b := range gap {
		assert.Equal(t, byte(0), b)
	}
}

func TestDenyWriteSymmetry(t *testing.T) {
	table, _ := newTable(t, 128)
	require.True(t, inode.Create(table, 3, 100, false))
	n := table.Open(3)
	defer n.Close()

	n.DenyWrite()
	written, err := n.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	n.AllowWrite()
	written, err = n.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, written)
}

func TestAllowWriteWithoutDenyPanics(t *testing.T) {
	table, _ := newTable(t, 128)
	require.True(t, inode.Create(table, 3, 0, false))
	n := table.Open(3)
	defer n.Close()

	assert.Panics(t, func() { n.AllowWrite() })
}

func TestRemoveFreesSectorsOnLastClose(t *testing.T) {
	table, fm := newTable(t, 4096, 15)
	require.True(t, inode.Create(table, 15, 0, false))
	n := table.Open(15)

	_, err := n.WriteAt(make([]byte, 600*blockdev.SectorSize), 0)
	require.NoError(t, err)
	freeAfterGrowth := fm.Count()

	n.Remove()
	require.NoError(t, n.Close())

	assert.Greater(t, fm.Count(), freeAfterGrowth)
}

func TestReadSectorBootstrap(t *testing.T) {
	dev := blockdev.NewMemory(64)
	cache := sectorcache.New(dev, 32)
	fm := freemap.New(64, 0)
	table := inode.NewTable(cache, fm)

	require.True(t, inode.Create(table, 0, 0, false))
	n := table.Open(0)
	payload := []byte("free-map-bits")
	_, err := n.WriteAt(payload, 0)
	require.NoError(t, err)
	require.NoError(t, n.Close())

	got := make([]byte, len(payload))
	read, err := inode.ReadSector(cache, 0, got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), read)
	assert.Equal(t, payload, got)
}
