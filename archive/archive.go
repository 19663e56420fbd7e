// Package archive implements the in-memory path -> (blob handle,
// executable-bit) mapping described in spec §3/§4.4, with the POSIX
// relative-path security invariant enforced at insertion time (spec §8
// invariant 1).
package archive

import (
	"fmt"
	"strings"
	"sync"

	"github.com/purplesyringa/sunwalker-conductor/blob"
)

// File is one archive entry: the blob holding its contents, and whether it
// should be marked executable in the sandbox.
type File struct {
	Handle     blob.Handle
	Executable bool
}

// Entry is a (path, File) pair, used by Entries() for a stable snapshot.
type Entry struct {
	Path string
	File File
}

// Archive is an append-only mapping from relative path to archive file:
// entries are never overwritten or removed, and there is no separate sealing
// step. Safe for concurrent insertion.
type Archive struct {
	mu    sync.RWMutex
	files map[string]File
}

// New creates an empty archive.
func New() *Archive {
	return &Archive{files: make(map[string]File)}
}

// AddFile inserts path -> (handle, executable). Returns an error if path
// violates the POSIX relative-path security invariant, or if path is
// already present (archive paths are unique; re-insertion is a caller bug,
// not a silent overwrite).
func (a *Archive) AddFile(path string, handle blob.Handle, executable bool) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.files[path]; exists {
		return fmt.Errorf("archive: path %q already present", path)
	}
	a.files[path] = File{Handle: handle, Executable: executable}
	return nil
}

// Lookup returns the file stored at path, if any.
func (a *Archive) Lookup(path string) (File, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.files[path]
	return f, ok
}

// Entries returns a stable snapshot of every (path, file) pair, the set an
// invoker sees: { (path, blob_handle, executable) }.
func (a *Archive) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entries := make([]Entry, 0, len(a.files))
	for path, f := range a.files {
		entries = append(entries, Entry{Path: path, File: f})
	}
	return entries
}

// ValidatePath enforces the archive path-safety invariant: forward-slash
// POSIX relative path, no ".." segment, no backslash, no colon, no leading
// slash.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("archive: path must not be empty")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("archive: path %q must not be absolute", path)
	}
	if strings.Contains(path, "\\") {
		return fmt.Errorf("archive: path %q must not contain a backslash", path)
	}
	if strings.Contains(path, ":") {
		return fmt.Errorf("archive: path %q must not contain a colon", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("archive: path %q must not contain a .. segment", path)
		}
	}
	return nil
}
