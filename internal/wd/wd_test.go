package wd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/freemap"
	"github.com/dragonfs/sectorfs/internal/inode"
	"github.com/dragonfs/sectorfs/internal/sectorcache"
	"github.com/dragonfs/sectorfs/internal/wd"
)

func TestChdirSwapsAndClosesOld(t *testing.T) {
	dev := blockdev.NewMemory(256)
	cache := sectorcache.New(dev, 64)
	fm := freemap.New(256, directory.RootSector)
	table := inode.NewTable(cache, fm)
	require.True(t, directory.Create(table, directory.RootSector, 4, directory.RootSector))

	require.True(t, directory.Create(table, 5, 4, directory.RootSector))
	root := directory.OpenRoot(table)
	require.True(t, directory.Add(root, "sub", 5))

	ctx := wd.New(root)
	assert.Same(t, root, ctx.Dir())
	assert.Equal(t, 1, table.Len())

	subDir := directory.Open(table.Open(5))
	assert.Equal(t, 2, table.Len())
	ctx.Chdir(subDir)
	assert.Same(t, subDir, ctx.Dir())
	// root's last reference was closed by Chdir; only sub remains open.
	assert.Equal(t, 1, table.Len())

	require.NoError(t, ctx.Close())
	assert.Equal(t, 0, table.Len())
}
