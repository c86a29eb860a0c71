// Package blob implements the storage backends for leaf-file bytes:
// a local filesystem store, an in-memory store for tests, an S3-backed
// store, and an age-encrypting wrapper around any of them.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"subtree-go/internal/subtree"
)

// FilesystemStore keeps blobs as flat files under a root directory, named
// by their storage keys.
type FilesystemStore struct {
	root string
}

var _ subtree.BlobStore = (*FilesystemStore)(nil)

// NewFilesystemStore creates the root directory if needed and returns a
// store over it.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Root returns the storage root directory.
func (s *FilesystemStore) Root() string { return s.root }

func (s *FilesystemStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Adopt moves the file at srcPath under key, falling back to copy+remove
// when rename crosses a filesystem boundary.
func (s *FilesystemStore) Adopt(key string, srcPath string) (int64, error) {
	dest, err := s.path(key)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	if err := os.Rename(srcPath, dest); err == nil {
		return info.Size(), nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	n, err := s.Put(key, src)
	src.Close()
	if err != nil {
		return 0, err
	}
	if err := os.Remove(srcPath); err != nil {
		return 0, fmt.Errorf("removing source after copy: %w", err)
	}
	return n, nil
}

// Put streams r into the store atomically: the blob appears under its key
// only once fully written (temp file + rename).
func (s *FilesystemStore) Put(key string, r io.Reader) (int64, error) {
	dest, err := s.path(key)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing blob: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("publishing blob: %w", err)
	}
	return n, nil
}

func (s *FilesystemStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", key, err)
	}
	return f, nil
}

func (s *FilesystemStore) Exists(key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return true, nil
}

func (s *FilesystemStore) Size(key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return info.Size(), nil
}

func (s *FilesystemStore) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", key, err)
	}
	return nil
}
