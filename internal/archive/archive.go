// Package archive decodes untrusted zip and tar uploads into a directory,
// enforcing size quotas and rejecting archives that try to escape the
// extraction root or exhaust resources.
package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subtree-go/internal/subtree"
)

// Limits on archive structure. Archives past these bounds are hostile or
// broken, not student work.
const (
	maxMembers = 32768
	maxDepth   = 64
)

var archiveSuffixes = []string{
	".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tbz", ".tbz2",
}

// Decoder sniffs archive formats and opens them for bounded extraction.
// maxFileSize caps every individual member.
type Decoder struct {
	maxFileSize int64
}

// NewDecoder creates a Decoder with the given per-member byte cap.
func NewDecoder(maxFileSize int64) *Decoder {
	return &Decoder{maxFileSize: maxFileSize}
}

// Detect reports whether the filename carries a supported archive suffix.
func (d *Decoder) Detect(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Open sniffs the file's leading bytes and returns a handle for the
// detected format. Unknown content fails with *UnrecognizedFormatError.
func (d *Decoder) Open(path string) (subtree.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	magic := make([]byte, 4)
	n, _ := f.Read(magic)
	f.Close()
	magic = magic[:n]

	switch {
	case bytes.HasPrefix(magic, []byte("PK\x03\x04")):
		return d.openZip(path)
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		return d.openTar(path, compressGzip)
	case bytes.HasPrefix(magic, []byte("BZh")):
		return d.openTar(path, compressBzip2)
	default:
		// Uncompressed tar has no leading magic; its signature sits at
		// offset 257. openTar validates by reading the first header.
		if a, err := d.openTar(path, compressNone); err == nil {
			return a, nil
		}
		return nil, &subtree.UnrecognizedFormatError{Name: filepath.Base(path)}
	}
}

// memberPath validates a member name and resolves it below dir.
// Absolute names, parent traversal, and absurd nesting are unsafe.
func memberPath(dir string, name string) (string, error) {
	name = filepath.ToSlash(name)
	name = strings.TrimPrefix(name, "./")
	if name == "" || name == "." {
		return "", nil // archive metadata entry, nothing to write
	}
	if strings.HasPrefix(name, "/") || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q escapes the extraction root", name)}
	}
	if strings.Count(name, "/") >= maxDepth {
		return "", &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q is nested too deeply", name)}
	}
	return filepath.Join(dir, filepath.FromSlash(name)), nil
}

// sizeBudget tracks the per-member and aggregate byte caps during one
// extraction.
type sizeBudget struct {
	perFile int64
	maxSize int64
	total   int64
}

// charge accounts n freshly written bytes of the named member, failing
// with the distinct per-file or aggregate quota error.
func (b *sizeBudget) charge(name string, n int64) error {
	if n > b.perFile {
		return &subtree.TooLargeError{Max: b.perFile, SingleFile: true, Name: name}
	}
	b.total += n
	if b.total > b.maxSize {
		return &subtree.TooLargeError{Max: b.maxSize}
	}
	return nil
}
