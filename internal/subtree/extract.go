package subtree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Upload is one uploaded item: an original filename (used for format
// sniffing and diagnostics only) and its content stream.
type Upload struct {
	Name    string
	Content io.Reader
}

// extractToTemp saves the upload to a scoped temporary file, decodes it
// into a fresh temporary directory and applies the ignore policy. On
// success the directory is returned along with the decoded byte total and
// ownership transfers to the caller; on every failure path both temporary
// resources are removed. The temporary archive file is always removed.
func (s *Service) extractToTemp(up Upload, maxSize int64, policy IgnorePolicy, filter IgnoreFilter) (dir string, size int64, err error) {
	blob, err := os.CreateTemp("", "upload-*"+tempSuffix(up.Name))
	if err != nil {
		return "", 0, &StorageError{Op: "creating temporary upload file", Err: err}
	}
	blobPath := blob.Name()
	defer os.Remove(blobPath)

	_, err = io.Copy(blob, up.Content)
	if cerr := blob.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, &StorageError{Op: "saving uploaded blob", Err: err}
	}

	tmpdir, err := os.MkdirTemp("", "extract-")
	if err != nil {
		return "", 0, &StorageError{Op: "creating extraction directory", Err: err}
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmpdir)
		}
	}()

	arch, err := s.decoder.Open(blobPath)
	if err != nil {
		var unrec *UnrecognizedFormatError
		if errors.As(err, &unrec) {
			// The decoder only saw the temp path; report the real name.
			return "", 0, &UnrecognizedFormatError{Name: up.Name}
		}
		return "", 0, fmt.Errorf("opening archive %s: %w", up.Name, err)
	}
	defer arch.Close()

	if policy == PolicyError {
		members, merr := arch.Members()
		if merr != nil {
			return "", 0, fmt.Errorf("listing members of %s: %w", up.Name, merr)
		}
		if ignored := filter.IgnoredMembers(members); len(ignored) > 0 {
			return "", 0, &IgnoredFilesError{Files: ignored}
		}
	}

	size, err = arch.Extract(tmpdir, maxSize)
	if err != nil {
		var unsafe *UnsafeArchiveError
		if errors.As(err, &unsafe) {
			s.logger.Warn("unsafe archive submitted", "name", up.Name, "reason", unsafe.Reason)
		}
		return "", 0, err
	}

	if policy == PolicyDelete {
		if derr := filter.DeleteIgnored(tmpdir); derr != nil {
			err = fmt.Errorf("deleting ignored files: %w", derr)
			return "", 0, err
		}
	}

	return tmpdir, size, nil
}

// extract decodes one archive upload into a relocated logical tree. The
// top-level directory name is taken from the archive's single top entry
// when there is one, and from the archive filename otherwise.
func (s *Service) extract(up Upload, opts IngestOptions, sw *sweeper, warn warnFunc) (*Tree, error) {
	tmpdir, size, err := s.extractToTemp(up, opts.MaxSize, opts.Policy, opts.Filter)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	top, err := s.relocateTree(tmpdir, sw, warn)
	if err != nil {
		return nil, err
	}

	var root Dir
	if len(top.Entries) == 1 {
		if d, ok := top.Entries[0].(*Dir); ok {
			root = *d
		} else {
			root = Dir{Name: archiveBaseName(up.Name), Entries: top.Entries}
		}
	} else {
		root = Dir{Name: archiveBaseName(up.Name), Entries: top.Entries}
	}
	root.Name = s.escapeName(root.Name, warn)

	return &Tree{Dir: root, Size: size}, nil
}

// archiveBaseName is the archive filename up to its first dot, the name
// used for the tree root when the archive has no single top directory.
func archiveBaseName(name string) string {
	base := filepath.Base(name)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// tempSuffix turns an upload name into something safe to embed in a
// temp-file pattern for diagnostics.
func tempSuffix(name string) string {
	base := filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '/', '\\', 0:
			return '_'
		}
		return r
	}, base)
}
