// Package pathresolver implements the component-by-component path
// traversal of spec §4.5: absolute paths start at the root directory,
// relative paths start at the caller's working directory, and the
// traversal keeps a one-component lookahead so it can report the parent
// directory and final component name of a path whose last component does
// not yet exist (supporting creation at the tail).
package pathresolver

import (
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/inode"
)

// nextPart extracts the next path component from s, skipping any leading
// run of '/'. status is 1 on success, 0 at end of string, -1 if the
// component exceeds directory.MaxNameLen bytes.
func nextPart(s string) (part string, rest string, status int) {
	i := 0
	for i < len(s) && s[i] == '/' {
		i++
	}
	if i >= len(s) {
		return "", "", 0
	}
	j := i
	for j < len(s) && s[j] != '/' {
		j++
	}
	comp := s[i:j]
	if len(comp) > directory.MaxNameLen {
		return "", s[j:], -1
	}
	return comp, s[j:], 1
}

// Resolve walks path to its parent directory and final component name.
// cwd anchors relative paths and is never closed by Resolve (it is
// reopened, not consumed); the caller remains responsible for cwd's own
// lifetime. On success the caller must Close the returned *directory.Dir.
func Resolve(t *inode.Table, cwd *directory.Dir, path string) (*directory.Dir, string, bool) {
	if len(path) == 0 {
		return nil, "", false
	}

	var current *directory.Dir
	if path[0] == '/' {
		current = directory.OpenRoot(t)
	} else {
		current = directory.Reopen(cwd)
	}

	part, rest, status := nextPart(path)
	if status == -1 {
		directory.Close(current)
		return nil, "", false
	}
	if status == 0 {
		// Path consisted entirely of slashes (or was just "/"): the
		// starting directory is both parent and target.
		return current, ".", true
	}

	for {
		nextComponent, nextRest, nextStatus := nextPart(rest)
		if nextStatus == -1 {
			directory.Close(current)
			return nil, "", false
		}
		moreComponents := nextStatus == 1

		child, found := directory.Lookup(t, current, part)
		if !found {
			if !moreComponents {
				return current, part, true
			}
			directory.Close(current)
			return nil, "", false
		}

		if !moreComponents {
			child.Close()
			return current, part, true
		}

		isDir, err := child.IsDir()
		if err != nil {
			child.Close()
			directory.Close(current)
			return nil, "", false
		}
		if !isDir {
			child.Close()
			directory.Close(current)
			return nil, "", false
		}

		directory.Close(current)
		current = directory.Open(child)

		part = nextComponent
		rest = nextRest
	}
}
