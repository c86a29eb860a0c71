// Package ignore implements gitignore-style exclusion rules for uploaded
// submission trees. Matching follows the gitignore rules: `*` and `?`
// wildcards, character classes, `**` path globs, leading-`/` anchoring,
// trailing-`/` directory-only patterns, `!` negation, last match wins.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"subtree-go/internal/subtree"
)

// Pattern is one compiled ignore rule. Line keeps the original rule text
// for error reporting.
type Pattern struct {
	Line    string
	Exclude bool // false for `!`-negated patterns
	re      *regexp.Regexp
}

// Match reports whether the slash-separated relative path matches.
func (p *Pattern) Match(path string) bool { return p.re.MatchString(path) }

// Filter is a compiled set of ignore rules.
type Filter struct {
	patterns []*Pattern
}

var _ subtree.IgnoreFilter = (*Filter)(nil)

// New compiles the given rule lines. Blank lines and `#` comments are
// skipped; unquoted trailing spaces are stripped.
func New(lines []string) (*Filter, error) {
	f := &Filter{}
	for _, original := range lines {
		line := strings.TrimRight(original, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for strings.HasSuffix(line, " ") && !strings.HasSuffix(line, `\ `) {
			line = line[:len(line)-1]
		}
		line = strings.ReplaceAll(line, `\ `, " ")

		p, err := compilePattern(line, original)
		if err != nil {
			return nil, err
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// NewFromFile compiles the rules in an ignore file. A missing file yields
// an empty filter.
func NewFromFile(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil)
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer file.Close()
	return NewFromReader(file)
}

// NewFromReader compiles the rules read line-by-line from r.
func NewFromReader(r io.Reader) (*Filter, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore rules: %w", err)
	}
	return New(lines)
}

func compilePattern(line string, original string) (*Pattern, error) {
	pattern := line
	exclude := true
	if strings.HasPrefix(pattern, "!") {
		exclude = false
		pattern = pattern[1:]
	} else if strings.HasPrefix(pattern, `\`) {
		pattern = pattern[1:]
	}

	re, err := regexp.Compile(translate(pattern))
	if err != nil {
		return nil, fmt.Errorf("bad ignore pattern %q: %w", original, err)
	}
	return &Pattern{Line: original, Exclude: exclude, re: re}, nil
}

// findMatching returns the patterns matching path or any of its leading
// directories. Directory prefixes are tried with a trailing slash so that
// directory-only patterns apply to everything below them.
func (f *Filter) findMatching(path string) []*Pattern {
	parts := strings.Split(path, "/")

	for i := 0; i <= len(parts); i++ {
		rel := strings.Join(parts[:i], "/")
		if i < len(parts) {
			rel += "/"
		}
		var matches []*Pattern
		for _, p := range f.patterns {
			if p.Match(rel) {
				matches = append(matches, p)
			}
		}
		if len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// IsIgnored reports whether the slash-separated relative path is excluded
// and, if so, the original rule line that matched. The last matching rule
// wins, so a later `!` negation re-includes an earlier match.
func (f *Filter) IsIgnored(path string) (bool, string) {
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")
	matches := f.findMatching(path)
	if len(matches) == 0 {
		return false, ""
	}
	last := matches[len(matches)-1]
	return last.Exclude, last.Line
}

// IgnoredMembers filters an archive member listing down to the excluded
// entries with their matching rules.
func (f *Filter) IgnoredMembers(members []string) []subtree.IgnoredFile {
	var out []subtree.IgnoredFile
	for _, name := range members {
		if ignored, rule := f.IsIgnored(name); ignored {
			out = append(out, subtree.IgnoredFile{Name: name, Rule: rule})
		}
	}
	return out
}

// DeleteIgnored removes every excluded file and directory below dir.
func (f *Filter) DeleteIgnored(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ignored, _ := f.IsIgnored(rel + "/"); ignored {
				if err := os.RemoveAll(path); err != nil {
					return fmt.Errorf("removing ignored directory %s: %w", rel, err)
				}
				return filepath.SkipDir
			}
			return nil
		}
		if ignored, _ := f.IsIgnored(rel); ignored {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("removing ignored file %s: %w", rel, err)
			}
		}
		return nil
	})
}
