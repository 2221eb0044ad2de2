// Package wd models the process/thread-runtime collaborator the core
// consumes only to obtain "the caller's current working directory" (spec
// §6/§9): an opaque, caller-owned capability carrying one open directory
// handle, swapped atomically by chdir-type operations.
package wd

import (
	"sync"

	"github.com/dragonfs/sectorfs/internal/directory"
)

// Context is a per-goroutine ("process") working-directory capability.
// The core never manages its lifecycle beyond what Chdir does here; the
// caller creates one per logical process and closes its final Dir itself
// (via Close) when the process exits.
type Context struct {
	mu  sync.Mutex
	dir *directory.Dir
}

// New wraps an already-open directory handle as a working-directory
// context.
func New(dir *directory.Dir) *Context {
	return &Context{dir: dir}
}

// Dir returns the context's current working directory handle. Callers
// must not Close it directly; go through Chdir or Close.
func (c *Context) Dir() *directory.Dir {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// Chdir atomically replaces the working directory with newDir, closing the
// previous one.
func (c *Context) Chdir(newDir *directory.Dir) {
	c.mu.Lock()
	old := c.dir
	c.dir = newDir
	c.mu.Unlock()
	if old != nil {
		directory.Close(old)
	}
}

// Close closes the context's current working directory handle. Call this
// once, when the logical process exits.
func (c *Context) Close() error {
	c.mu.Lock()
	d := c.dir
	c.dir = nil
	c.mu.Unlock()
	if d == nil {
		return nil
	}
	return directory.Close(d)
}
