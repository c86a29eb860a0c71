package subtree

import (
	"fmt"
)

// IngestOptions control how a batch of uploads is assembled.
type IngestOptions struct {
	// MaxSize is the total decoded byte quota for the whole submission.
	MaxSize int64
	// Policy decides what happens to ignore-matched files. Any policy
	// other than PolicyKeep requires a Filter.
	Policy IgnorePolicy
	// Filter holds the assignment's ignore rules.
	Filter IgnoreFilter
	// ForcePlain disables archive sniffing: every upload is stored as a
	// plain file.
	ForcePlain bool
}

// sweeper tracks the storage keys allocated during one in-progress batch so
// that any failure exit can delete the blobs again. Success clears the
// list; failure sweeps it.
type sweeper struct {
	keys []string
}

func (sw *sweeper) add(key string) { sw.keys = append(sw.keys, key) }

func (sw *sweeper) clear() { sw.keys = nil }

func (sw *sweeper) sweep(blobs BlobStore, logger Logger) {
	for _, key := range sw.keys {
		if err := blobs.Remove(key); err != nil {
			logger.Error("sweeping blob after failed ingestion", "key", key, "error", err)
		}
	}
	sw.keys = nil
}

// Ingest composes one-or-more uploads into a single logical submission
// tree. A lone archive becomes the tree by itself; any other combination
// is unioned under a synthetic root named "top". The returned warnings
// describe non-fatal adjustments such as reserved-name escaping.
//
// On any error all blobs relocated during this call are deleted again, so
// a failed batch leaves no storage residue.
func (s *Service) Ingest(uploads []Upload, opts IngestOptions) (tree *Tree, warnings []string, err error) {
	if len(uploads) == 0 {
		return nil, nil, fmt.Errorf("no uploads given")
	}
	if opts.Policy != PolicyKeep && opts.Filter == nil {
		return nil, nil, fmt.Errorf("ignore policy %s requires an ignore filter", opts.Policy)
	}

	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	sw := &sweeper{}
	defer func() {
		if err != nil {
			sw.sweep(s.blobs, s.logger)
		}
	}()

	isArchive := func(name string) bool {
		return !opts.ForcePlain && s.decoder.Detect(name)
	}

	if len(uploads) == 1 && isArchive(uploads[0].Name) {
		tree, err = s.extract(uploads[0], opts, sw, warn)
	} else {
		tree, err = s.assemble(uploads, opts, sw, warn, isArchive)
	}
	if err != nil {
		return nil, warnings, err
	}

	if !tree.ContainsFile() {
		return nil, warnings, &NoFilesError{AllFiltered: opts.Policy != PolicyKeep}
	}

	tree.Dehead()
	sw.clear()
	s.logger.Info("upload ingested", "size", tree.Size, "root", tree.Name)
	return tree, warnings, nil
}

// assemble unions every upload under a synthetic "top" root, enforcing the
// per-file and total quotas as it goes. Quota failures are immediate; the
// caller's sweeper reclaims blobs relocated by earlier items.
func (s *Service) assemble(uploads []Upload, opts IngestOptions, sw *sweeper, warn warnFunc, isArchive func(string) bool) (*Tree, error) {
	root := &Tree{Dir: Dir{Name: "top"}}

	for _, up := range uploads {
		if isArchive(up.Name) {
			sub, err := s.extract(up, opts, sw, warn)
			if err != nil {
				return nil, err
			}
			root.Entries = append(root.Entries, &sub.Dir)
			root.Size += sub.Size
		} else {
			leaf, size, err := s.storePlainFile(up, opts, sw, warn)
			if err != nil {
				return nil, err
			}
			if leaf != nil {
				root.Entries = append(root.Entries, leaf)
				root.Size += size
			}
		}

		if root.Size > opts.MaxSize {
			return nil, &TooLargeError{Max: opts.MaxSize}
		}
	}

	if len(root.Entries) == 0 {
		return nil, &NoFilesError{AllFiltered: opts.Policy != PolicyKeep}
	}
	return root, nil
}

// storePlainFile relocates one plain upload into the blob store. It
// returns a nil leaf when the file was dropped under PolicyDelete.
//
// The per-file cap is checked after the copy because uploads are streams
// without a trusted length; the key is registered with the sweeper first,
// so the oversized blob is removed again on the failure path.
func (s *Service) storePlainFile(up Upload, opts IngestOptions, sw *sweeper, warn warnFunc) (*Leaf, int64, error) {
	if opts.Policy != PolicyKeep {
		ignored, rule := opts.Filter.IsIgnored(up.Name)
		switch {
		case !ignored:
		case opts.Policy == PolicyDelete:
			return nil, 0, nil
		case opts.Policy == PolicyError:
			return nil, 0, &IgnoredFilesError{Files: []IgnoredFile{{Name: up.Name, Rule: rule}}}
		}
	}

	key, err := s.allocateKey()
	if err != nil {
		return nil, 0, fmt.Errorf("allocating storage key: %w", err)
	}
	sw.add(key)

	size, err := s.blobs.Put(key, up.Content)
	if err != nil {
		return nil, 0, &StorageError{Op: "storing " + up.Name, Err: err}
	}
	if size > s.maxFileSize {
		return nil, 0, &TooLargeError{Max: s.maxFileSize, SingleFile: true, Name: up.Name}
	}

	return &Leaf{Name: s.escapeName(up.Name, warn), DiskName: key}, size, nil
}
