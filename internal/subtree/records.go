package subtree

import "time"

// Owner marks which side of a post-deadline divergence a persisted record
// belongs to. Records created at ingestion are always OwnerBoth; OwnerStudent
// and OwnerTeacher appear only when a teacher revision diverges from the
// original submission.
type Owner string

const (
	OwnerStudent Owner = "student"
	OwnerTeacher Owner = "teacher"
	OwnerBoth    Owner = "both"

	// OwnerNone as an exclusion filter excludes nothing: every record is
	// visible. It is not a valid value for a stored record.
	OwnerNone Owner = ""
)

// ParseOwner converts a string to an Owner. The empty string is OwnerNone.
func ParseOwner(s string) (Owner, bool) {
	switch Owner(s) {
	case OwnerStudent, OwnerTeacher, OwnerBoth, OwnerNone:
		return Owner(s), true
	}
	return OwnerNone, false
}

// File is one persisted node of a submission's tree. Directories exist only
// in the database; a leaf's bytes live in the blob store under DiskName.
type File struct {
	ID           string
	SubmissionID string
	Name         string
	DiskName     string // empty for directories
	ParentID     string // empty only for the submission's root
	IsDirectory  bool
	Owner        Owner
	ModifiedAt   time.Time
}

// Listing is the query shape for directory trees: leaves carry no Entries,
// directories carry the visible children sorted case-insensitively by name.
type Listing struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Entries []*Listing `json:"entries,omitempty"`
}

// FileStat is the metadata summary for a single record. Size is the blob
// size in bytes and 0 for directories.
type FileStat struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsDirectory bool      `json:"is_directory"`
	ModifiedAt  time.Time `json:"modification_date"`
	Size        int64     `json:"size"`
}
