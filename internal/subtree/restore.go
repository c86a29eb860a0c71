package subtree

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Restore recreates the submission's visible subtree below dest and
// returns the root's logical name. Children are fetched with a single
// query up front instead of one round-trip per node. Leaf bytes are
// copied from the blob store; the destination never links into it.
func (s *Service) Restore(submissionID string, exclude Owner, dest string) (string, error) {
	root, err := s.store.GetRoot(submissionID, exclude)
	if err != nil {
		return "", err
	}

	mapping, err := s.store.ChildrenMapping(submissionID, exclude)
	if err != nil {
		return "", fmt.Errorf("loading children: %w", err)
	}

	if err := s.restoreNode(root, mapping, dest); err != nil {
		return "", err
	}
	s.logger.Info("submission restored", "submission", submissionID, "dest", dest, "exclude", exclude)
	return root.Name, nil
}

func (s *Service) restoreNode(f *File, mapping map[string][]*File, parent string) error {
	out := filepath.Join(parent, f.Name)

	if f.IsDirectory {
		if err := os.Mkdir(out, 0755); err != nil {
			return &StorageError{Op: "creating directory " + out, Err: err}
		}
		for _, child := range mapping[f.ID] {
			if err := s.restoreNode(child, mapping, out); err != nil {
				return err
			}
		}
		return nil
	}

	blob, err := s.blobs.Open(f.DiskName)
	if err != nil {
		return &StorageError{Op: "opening blob " + f.DiskName, Err: err}
	}
	defer blob.Close()

	dst, err := os.Create(out)
	if err != nil {
		return &StorageError{Op: "creating file " + out, Err: err}
	}

	_, err = io.Copy(dst, blob)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return &StorageError{Op: "writing file " + out, Err: err}
	}
	return nil
}

// ExportZip writes the visible subtree as a deflate-compressed zip to w
// and returns the root's logical name for use in the download filename.
// The tree is restored into a scoped temporary directory first, removed
// on every exit path.
func (s *Service) ExportZip(submissionID string, exclude Owner, w io.Writer) (string, error) {
	tmpdir, err := os.MkdirTemp("", "export-")
	if err != nil {
		return "", &StorageError{Op: "creating export directory", Err: err}
	}
	defer os.RemoveAll(tmpdir)

	rootName, err := s.Restore(submissionID, exclude, tmpdir)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(w)
	root := filepath.Join(tmpdir, rootName)

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(tmpdir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if info.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		entry, err := zw.Create(name)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("writing zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing zip: %w", err)
	}
	return rootName, nil
}
