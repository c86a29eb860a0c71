package subtree

import "io"

// BlobStore holds the bytes of leaf files under opaque storage keys.
// Implementations must never expose a key's bytes under any path derived
// from user input.
type BlobStore interface {
	// Adopt moves the file at srcPath into the store under key and returns
	// its size. The source file is gone afterwards, also on implementations
	// that copy instead of rename.
	Adopt(key string, srcPath string) (int64, error)

	// Put streams r into the store under key and returns the number of
	// bytes stored.
	Put(key string, r io.Reader) (int64, error)

	// Open returns a reader for the blob's plaintext bytes.
	Open(key string) (io.ReadCloser, error)

	// Exists reports whether a blob is stored under key.
	Exists(key string) (bool, error)

	// Size returns the plaintext size of the blob in bytes.
	Size(key string) (int64, error)

	// Remove deletes the blob. Removing an absent key is not an error.
	Remove(key string) error
}
