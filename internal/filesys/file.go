package filesys

import (
	"io"
	"sync"

	"github.com/dragonfs/sectorfs/internal/diskerr"
	"github.com/dragonfs/sectorfs/internal/inode"
)

// File is an open handle on a non-directory inode, adding a sequential
// cursor (ReadAt/WriteAt are offset-explicit and cursor-independent; Read/
// Write/Seek give callers the familiar io.ReadWriteSeeker shape).
type File struct {
	node *inode.Inode

	mu  sync.Mutex
	pos int64
}

func openFile(n *inode.Inode) *File {
	return &File{node: n}
}

// ReadAt reads len(p) bytes starting at off, independent of the file's
// cursor.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.node.ReadAt(p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// WriteAt writes len(p) bytes starting at off, growing the file if
// necessary, independent of the file's cursor. It returns ErrWriteDenied if
// a DenyWrite is currently outstanding on the file's inode.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.node.WriteDenied() {
		return 0, diskerr.ErrWriteDenied
	}
	return f.node.WriteAt(p, off)
}

// Read reads from the file's current cursor, advancing it by the number of
// bytes read.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	off := f.pos
	f.mu.Unlock()

	n, err := f.ReadAt(p, off)
	f.mu.Lock()
	f.pos = off + int64(n)
	f.mu.Unlock()
	return n, err
}

// Write writes at the file's current cursor, advancing it by the number of
// bytes written.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	off := f.pos
	f.mu.Unlock()

	n, err := f.WriteAt(p, off)
	f.mu.Lock()
	f.pos = off + int64(n)
	f.mu.Unlock()
	return n, err
}

// Seek repositions the file's cursor per io.Seeker semantics.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	length, err := f.node.Length()
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = length + offset
	}
	if f.pos < 0 {
		f.pos = 0
	}
	return f.pos, nil
}

// Length returns the file's current byte length.
func (f *File) Length() (int64, error) {
	return f.node.Length()
}

// DenyWrite forbids writes to this file's inode until a matching
// AllowWrite, for callers protecting a running executable image.
func (f *File) DenyWrite() {
	f.node.DenyWrite()
}

// AllowWrite lifts a previous DenyWrite.
func (f *File) AllowWrite() {
	f.node.AllowWrite()
}

// Close releases the file's reference on its inode.
func (f *File) Close() error {
	return f.node.Close()
}
