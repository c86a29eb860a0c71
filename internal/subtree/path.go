package subtree

import "strings"

// SplitPath splits a forward-slash separated logical path into its
// segments and reports whether the path names a directory (trailing
// slash). Repeated slashes collapse and a leading slash is optional.
func SplitPath(path string) ([]string, bool) {
	isDir := strings.HasSuffix(path, "/")

	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts, isDir
}
