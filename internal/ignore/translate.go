package ignore

import (
	"regexp"
	"strings"
)

// translate converts a gitignore pattern into an anchored Go regexp.
// The rules follow git's: a pattern without a slash matches basenames at
// any depth, a leading `**/` or `/` anchors depth, `**` inside a path
// matches any number of segments, and a pattern not ending in `/` matches
// both the file and the directory form.
func translate(pat string) string {
	var b strings.Builder
	b.WriteString(`(?ms)\A`)

	if !strings.Contains(strings.TrimSuffix(pat, "/"), "/") {
		// Slash-free patterns are basename matches.
		b.WriteString(`(.*/)?`)
	}

	if strings.HasPrefix(pat, "**/") {
		pat = pat[2:]
		b.WriteString(`(.*/)?`)
	}
	pat = strings.TrimPrefix(pat, "/")

	for i, segment := range strings.Split(pat, "/") {
		if segment == "**" {
			b.WriteString(`(/.*)?`)
			continue
		}
		if i > 0 {
			b.WriteString(`/`)
		}
		b.WriteString(translateSegment(segment))
	}

	if !strings.HasSuffix(pat, "/") {
		b.WriteString(`/?`)
	}
	b.WriteString(`\z`)
	return b.String()
}

func translateSegment(segment string) string {
	if segment == "*" {
		return `[^/]+`
	}

	var b strings.Builder
	for i := 0; i < len(segment); {
		c := segment[i]
		i++
		switch c {
		case '*':
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i
			if j < len(segment) && segment[j] == '!' {
				j++
			}
			if j < len(segment) && segment[j] == ']' {
				j++
			}
			for j < len(segment) && segment[j] != ']' {
				j++
			}
			if j >= len(segment) {
				b.WriteString(`\[`)
				continue
			}
			stuff := strings.ReplaceAll(segment[i:j], `\`, `\\`)
			i = j + 1
			if strings.HasPrefix(stuff, "!") {
				stuff = "^" + stuff[1:]
			}
			b.WriteString("[" + stuff + "]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
