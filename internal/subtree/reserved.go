package subtree

import "strings"

// EscapeMarker is appended to logical names that collide with a reserved
// name. Because reserved matching is prefix-based, an already-escaped name
// that is re-submitted gets escaped again; the stored name is therefore
// never literally a reserved one.
const EscapeMarker = "-USER_PROVIDED"

// ReservedNames is the set of sentinel filenames that user uploads may not
// claim. It is plain configuration data: build one per deployment (or per
// test) instead of mutating a package global.
type ReservedNames struct {
	files []string
}

// DefaultReservedNames are the platform's internal marker files.
var DefaultReservedNames = []string{
	".cg-grade",
	".cg-rubric.md",
	".cg-feedback",
	".cg-submission-id",
	".cg-edit-rubric.md",
	".cg-edit-rubric.help",
	".cg-assignment-settings.ini",
	".cg-assignment-id",
	".cg-mode",
	".api-socket",
}

// NewReservedNames builds the reserved set from the given sentinel
// filenames. The literal names "." and ".." are always reserved.
func NewReservedNames(files []string) *ReservedNames {
	return &ReservedNames{files: append([]string(nil), files...)}
}

// Escape returns the name, suffixed with EscapeMarker if it is reserved,
// and reports whether escaping happened. Prefix matches of reserved
// filenames are escaped too so that no name can shadow a sentinel.
func (r *ReservedNames) Escape(name string) (string, bool) {
	if name == "." || name == ".." {
		return name + EscapeMarker, true
	}
	for _, f := range r.files {
		if strings.HasPrefix(name, f) {
			return name + EscapeMarker, true
		}
	}
	return name, false
}
