package subtree

// TreeStore is the backing store for persisted file-tree records. All
// multi-record mutations happen inside one transaction: a submission either
// has its whole tree or none of it.
type TreeStore interface {
	// InsertTree persists root and everything below it as records owned by
	// submissionID, every record tagged OwnerBoth, and returns the root
	// record's id. It fails with ErrTreeExists when the submission already
	// has a root record.
	InsertTree(submissionID string, root *Dir) (string, error)

	// GetRoot returns the submission's parentless record.
	// Fails with ErrNotFound when the submission has no tree or the root
	// is hidden by exclude.
	GetRoot(submissionID string, exclude Owner) (*File, error)

	// GetFile returns a record by id, or ErrNotFound.
	GetFile(id string) (*File, error)

	// ChildrenMapping returns, in one query, every visible record of the
	// submission grouped by parent id and sorted case-insensitively by
	// name. The root is under the empty parent id.
	ChildrenMapping(submissionID string, exclude Owner) (map[string][]*File, error)

	// FindChildren returns the visible children of parentID matching name
	// and isDir. Under the per-parent uniqueness invariant the result has
	// at most one element; more indicate corrupted data.
	FindChildren(parentID string, name string, isDir bool, exclude Owner) ([]*File, error)

	// HasChildNamed reports whether parentID has a visible child with the
	// given logical name, of either kind.
	HasChildNamed(parentID string, name string, exclude Owner) (bool, error)

	// Rename updates a record's logical name and parent in place.
	Rename(id string, newName string, newParentID string) error

	// SetOwner retags a record.
	SetOwner(id string, owner Owner) error

	// DeleteTree removes every record of the submission and returns the
	// storage keys of the removed leaves so the caller can delete the
	// blobs.
	DeleteTree(submissionID string) ([]string, error)

	// Close closes the store.
	Close() error
}
