package subtree

import (
	"fmt"
	"os"
	"path/filepath"
)

// warnFunc records a non-fatal ingestion warning.
type warnFunc func(format string, args ...any)

// escapeName applies reserved-name escaping to a logical name, recording a
// warning when the name had to change.
func (s *Service) escapeName(name string, warn warnFunc) string {
	escaped, changed := s.reserved.Escape(name)
	if changed {
		warn("invalid filename %q was renamed to %q", name, escaped)
		s.logger.Warn("reserved filename escaped", "original", name, "renamed", escaped)
	}
	return escaped
}

// relocateTree converts the decoded directory at root into a logical Dir
// node, moving every regular file into the blob store under a freshly
// allocated key. Allocated keys are registered with sw so a failed batch
// can sweep them. The returned tree mirrors the literal on-disk structure;
// collapsing single-directory heads is the assembler's job.
func (s *Service) relocateTree(root string, sw *sweeper, warn warnFunc) (*Dir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &StorageError{Op: "reading extracted directory", Err: err}
	}

	dir := &Dir{Name: filepath.Base(root)}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		switch {
		case entry.IsDir():
			child, err := s.relocateTree(path, sw, warn)
			if err != nil {
				return nil, err
			}
			child.Name = s.escapeName(entry.Name(), warn)
			dir.Entries = append(dir.Entries, child)
		case entry.Type().IsRegular():
			key, err := s.allocateKey()
			if err != nil {
				return nil, fmt.Errorf("allocating storage key: %w", err)
			}
			sw.add(key)
			if _, err := s.blobs.Adopt(key, path); err != nil {
				return nil, &StorageError{Op: "relocating " + entry.Name(), Err: err}
			}
			dir.Entries = append(dir.Entries, &Leaf{
				Name:     s.escapeName(entry.Name(), warn),
				DiskName: key,
			})
		default:
			// The decoder rejects symlinks and specials; anything left
			// over is not submission content.
			s.logger.Warn("skipping irregular entry in extracted tree", "name", entry.Name())
		}
	}
	return dir, nil
}
