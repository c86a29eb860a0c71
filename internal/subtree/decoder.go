package subtree

// Decoder is the archive codec collaborator. Implementations sniff formats,
// list members and extract into a directory while enforcing size caps and
// rejecting archives that try to escape the extraction root.
type Decoder interface {
	// Detect reports whether the filename looks like an archive this
	// decoder can open. It is a cheap name-based check; Open may still
	// fail with *UnrecognizedFormatError.
	Detect(name string) bool

	// Open opens the archive stored at path. The returned handle must be
	// closed by the caller.
	Open(path string) (Archive, error)
}

// Archive is an opened archive handle.
type Archive interface {
	// Members returns the logical paths of all members in the archive,
	// directories included (with a trailing slash where the format records
	// them).
	Members() ([]string, error)

	// Extract unpacks the archive into dir and returns the total number of
	// bytes written. It fails with *TooLargeError when the aggregate
	// exceeds maxSize or a single member exceeds the decoder's per-file
	// cap, and with *UnsafeArchiveError on traversal, symlinks or
	// resource-exhaustion shapes.
	Extract(dir string, maxSize int64) (int64, error)

	Close() error
}
