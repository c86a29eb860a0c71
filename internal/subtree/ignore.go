package subtree

// IgnorePolicy determines what happens to files matched by the assignment's
// ignore rules during ingestion.
type IgnorePolicy int

const (
	// PolicyKeep performs no filtering at all.
	PolicyKeep IgnorePolicy = iota
	// PolicyDelete silently drops matched files from the result.
	PolicyDelete
	// PolicyError fails the whole ingestion when any file matches.
	PolicyError
)

func (p IgnorePolicy) String() string {
	switch p {
	case PolicyKeep:
		return "keep"
	case PolicyDelete:
		return "delete"
	case PolicyError:
		return "error"
	}
	return "unknown"
}

// ParsePolicy converts a config/CLI string to an IgnorePolicy.
func ParsePolicy(s string) (IgnorePolicy, bool) {
	switch s {
	case "keep":
		return PolicyKeep, true
	case "delete":
		return PolicyDelete, true
	case "error":
		return PolicyError, true
	}
	return PolicyKeep, false
}

// IgnoreFilter decides which logical paths an assignment excludes.
type IgnoreFilter interface {
	// IsIgnored reports whether name matches an ignore rule, and if so
	// which rule matched.
	IsIgnored(name string) (bool, string)

	// IgnoredMembers filters a member listing down to the matched entries
	// paired with their matching rules.
	IgnoredMembers(members []string) []IgnoredFile

	// DeleteIgnored removes every matched entry below dir from disk.
	DeleteIgnored(dir string) error
}
