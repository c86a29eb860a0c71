package subtree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path or record does not resolve to a
	// visible file-tree entry.
	ErrNotFound = errors.New("file not found")

	// ErrNameCollision is returned when a rename would give a parent two
	// visible children with the same logical name.
	ErrNameCollision = errors.New("name already exists in directory")

	// ErrTreeExists is returned by Materialize when the submission already
	// has a persisted tree. Materialize is full-replace, not merge; the
	// existing tree must be deleted first.
	ErrTreeExists = errors.New("submission already has a file tree")
)

// UnrecognizedFormatError is returned when an upload that should be an
// archive is not in any format the decoder understands.
type UnrecognizedFormatError struct {
	Name string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("%s is not a recognized archive format", e.Name)
}

// TooLargeError is returned when a quota is exceeded. SingleFile
// distinguishes the per-file cap from the aggregate submission cap, and
// Name carries the offending file when the cap was per-file.
type TooLargeError struct {
	Max        int64
	SingleFile bool
	Name       string
}

func (e *TooLargeError) Error() string {
	if e.SingleFile {
		return fmt.Sprintf("file %s is larger than the maximum of %d bytes", e.Name, e.Max)
	}
	return fmt.Sprintf("submission is larger than the maximum of %d bytes", e.Max)
}

// UnsafeArchiveError is returned when an archive tries to escape the
// extraction root or is structured to exhaust resources. These uploads are
// treated as hostile and logged with full context.
type UnsafeArchiveError struct {
	Reason string
}

func (e *UnsafeArchiveError) Error() string {
	return fmt.Sprintf("unsafe archive: %s", e.Reason)
}

// IgnoredFile is one archive member that matched an ignore rule, paired
// with the rule that matched it.
type IgnoredFile struct {
	Name string
	Rule string
}

// IgnoredFilesError is returned under PolicyError when an upload contains
// members that the assignment's ignore rules exclude.
type IgnoredFilesError struct {
	Files []IgnoredFile
}

func (e *IgnoredFilesError) Error() string {
	return fmt.Sprintf("upload contains %d file(s) matched by the ignore rules", len(e.Files))
}

// NoFilesError is returned when the composed tree holds no leaves.
// AllFiltered distinguishes "the upload had no files at all" from "every
// file was removed by the ignore rules".
type NoFilesError struct {
	AllFiltered bool
}

func (e *NoFilesError) Error() string {
	if e.AllFiltered {
		return "all files are excluded by the ignore rules"
	}
	return "no files found in the upload"
}

// StorageError wraps a blob-store or filesystem failure. These are
// operational conditions (disk full, permissions); the subsystem surfaces
// them without retrying.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
