package subtree

import (
	"fmt"
	"io"
)

// List returns the visible tree of {id, name} entries for the submission,
// starting at startID (the root when empty). Directory children are the
// direct children whose ownership tag differs from exclude, sorted
// case-insensitively by name.
func (s *Service) List(submissionID string, exclude Owner, startID string) (*Listing, error) {
	start, err := s.startRecord(submissionID, exclude, startID)
	if err != nil {
		return nil, err
	}

	mapping, err := s.store.ChildrenMapping(submissionID, exclude)
	if err != nil {
		return nil, fmt.Errorf("loading children: %w", err)
	}
	return buildListing(start, mapping), nil
}

func (s *Service) startRecord(submissionID string, exclude Owner, startID string) (*File, error) {
	if startID == "" {
		return s.store.GetRoot(submissionID, exclude)
	}
	f, err := s.store.GetFile(startID)
	if err != nil {
		return nil, err
	}
	if f.SubmissionID != submissionID || f.Owner == exclude {
		return nil, ErrNotFound
	}
	return f, nil
}

func buildListing(f *File, mapping map[string][]*File) *Listing {
	l := &Listing{ID: f.ID, Name: f.Name}
	if !f.IsDirectory {
		return l
	}
	l.Entries = []*Listing{}
	for _, child := range mapping[f.ID] {
		l.Entries = append(l.Entries, buildListing(child, mapping))
	}
	return l
}

// Search resolves a /-delimited logical path against the submission's
// tree. Intermediate segments must be visible directories; the final
// segment must be a directory exactly when the path has a trailing slash.
// Zero candidates at any step is ErrNotFound. More than one cannot happen
// under the per-parent uniqueness invariant; it is reported as ErrNotFound
// and logged as a data integrity signal.
func (s *Service) Search(submissionID string, path string, exclude Owner) (*File, error) {
	parts, wantDir := SplitPath(path)
	if len(parts) == 0 {
		return s.store.GetRoot(submissionID, exclude)
	}

	cur, err := s.store.GetRoot(submissionID, exclude)
	if err != nil {
		return nil, err
	}

	for i, part := range parts {
		isDir := wantDir || i < len(parts)-1
		matches, err := s.store.FindChildren(cur.ID, part, isDir, exclude)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", path, err)
		}
		if len(matches) > 1 {
			s.logger.Error("duplicate visible name under one parent",
				"submission", submissionID, "parent", cur.ID, "name", part, "exclude", exclude)
			return nil, ErrNotFound
		}
		if len(matches) == 0 {
			return nil, ErrNotFound
		}
		cur = matches[0]
	}
	return cur, nil
}

// GetFile returns a single record by id, or ErrNotFound.
func (s *Service) GetFile(fileID string) (*File, error) {
	return s.store.GetFile(fileID)
}

// Rename gives the record a new logical name under a new parent. It fails
// with ErrNameCollision when the parent already has a visible child of
// that name under the same exclusion filter.
func (s *Service) Rename(fileID string, newName string, newParentID string, exclude Owner) error {
	taken, err := s.store.HasChildNamed(newParentID, newName, exclude)
	if err != nil {
		return fmt.Errorf("checking for collision: %w", err)
	}
	if taken {
		return ErrNameCollision
	}
	if err := s.store.Rename(fileID, newName, newParentID); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

// SetOwner retags a record. Ingestion always creates OwnerBoth; this is
// the hook the teacher-revision overlay uses to mark divergence.
func (s *Service) SetOwner(fileID string, owner Owner) error {
	if owner == OwnerNone {
		return fmt.Errorf("cannot store the empty owner tag")
	}
	if err := s.store.SetOwner(fileID, owner); err != nil {
		return fmt.Errorf("retagging file: %w", err)
	}
	return nil
}

// Stat returns the metadata summary for a record. Directory sizes are 0;
// leaf sizes come from the blob store.
func (s *Service) Stat(fileID string) (*FileStat, error) {
	f, err := s.store.GetFile(fileID)
	if err != nil {
		return nil, err
	}

	stat := &FileStat{
		ID:          f.ID,
		Name:        f.Name,
		IsDirectory: f.IsDirectory,
		ModifiedAt:  f.ModifiedAt,
	}
	if !f.IsDirectory {
		size, err := s.blobs.Size(f.DiskName)
		if err != nil {
			return nil, &StorageError{Op: "stat blob " + f.DiskName, Err: err}
		}
		stat.Size = size
	}
	return stat, nil
}

// FileContents returns a reader for a leaf's bytes. Directories have no
// contents and are rejected.
func (s *Service) FileContents(fileID string) (io.ReadCloser, error) {
	f, err := s.store.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("file %s is a directory", fileID)
	}

	r, err := s.blobs.Open(f.DiskName)
	if err != nil {
		return nil, &StorageError{Op: "opening blob " + f.DiskName, Err: err}
	}
	return r, nil
}
