package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustFilter(t *testing.T, lines ...string) *Filter {
	t.Helper()
	f, err := New(lines)
	if err != nil {
		t.Fatalf("New(%v) error = %v", lines, err)
	}
	return f
}

func TestFilter_IsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		rules []string
		path  string
		want  bool
	}{
		{"basename glob at depth", []string{"*.log"}, "proj/debug/out.log", true},
		{"basename glob no match", []string{"*.log"}, "proj/out.log.txt", false},
		{"exact basename anywhere", []string{"Thumbs.db"}, "a/b/Thumbs.db", true},
		{"anchored pattern only at root", []string{"/build"}, "build", true},
		{"anchored pattern not at depth", []string{"/build"}, "sub/build", false},
		{"directory pattern matches contents", []string{"node_modules/"}, "node_modules/pkg/index.js", true},
		{"directory pattern ignores same-named file", []string{"bin/"}, "notbin", false},
		{"question mark", []string{"file?.txt"}, "fileA.txt", true},
		{"character class", []string{"file[0-9].txt"}, "file7.txt", true},
		{"character class negation", []string{"file[!0-9].txt"}, "fileX.txt", true},
		{"character class negation excludes", []string{"file[!0-9].txt"}, "file7.txt", false},
		{"double star segment", []string{"a/**/z.txt"}, "a/b/c/z.txt", true},
		{"double star zero segments", []string{"a/**/z.txt"}, "a/z.txt", true},
		{"leading double star", []string{"**/secrets.txt"}, "deep/down/secrets.txt", true},
		{"comment lines are skipped", []string{"# *.log"}, "out.log", false},
		{"escaped leading hash", []string{`\#important`}, "#important", true},
		{"blank lines are skipped", []string{"", "*.o"}, "main.o", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustFilter(t, tt.rules...)
			got, _ := f.IsIgnored(tt.path)
			if got != tt.want {
				t.Errorf("IsIgnored(%q) with %v = %v, want %v", tt.path, tt.rules, got, tt.want)
			}
		})
	}
}

func TestFilter_Negation(t *testing.T) {
	t.Run("later negation re-includes", func(t *testing.T) {
		f := mustFilter(t, "*.log", "!keep.log")

		if got, _ := f.IsIgnored("other.log"); !got {
			t.Error("other.log should be ignored")
		}
		if got, _ := f.IsIgnored("keep.log"); got {
			t.Error("keep.log should be re-included by the negation")
		}
	})

	t.Run("last match wins in order", func(t *testing.T) {
		f := mustFilter(t, "!keep.log", "*.log")
		if got, _ := f.IsIgnored("keep.log"); !got {
			t.Error("a later exclude overrides an earlier negation")
		}
	})
}

func TestFilter_MatchedRule(t *testing.T) {
	f := mustFilter(t, "*.tmp", "*.log")

	ignored, rule := f.IsIgnored("build/x.log")
	if !ignored || rule != "*.log" {
		t.Errorf("IsIgnored() = (%v, %q), want (true, *.log)", ignored, rule)
	}
}

func TestFilter_IgnoredMembers(t *testing.T) {
	f := mustFilter(t, "*.class")

	got := f.IgnoredMembers([]string{
		"proj/Main.java",
		"proj/Main.class",
		"proj/util/Helper.class",
	})
	if len(got) != 2 {
		t.Fatalf("IgnoredMembers() = %d entries, want 2", len(got))
	}
	for _, ig := range got {
		if !strings.HasSuffix(ig.Name, ".class") || ig.Rule != "*.class" {
			t.Errorf("unexpected entry %+v", ig)
		}
	}
}

func TestFilter_DeleteIgnored(t *testing.T) {
	dir := t.TempDir()
	mk := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mk("src/main.go", "code")
	mk("src/main.o", "obj")
	mk("node_modules/pkg/index.js", "js")

	f := mustFilter(t, "*.o", "node_modules/")
	if err := f.DeleteIgnored(dir); err != nil {
		t.Fatalf("DeleteIgnored() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "src", "main.go")); err != nil {
		t.Errorf("kept file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "main.o")); !os.IsNotExist(err) {
		t.Error("ignored file survived")
	}
	if _, err := os.Stat(filepath.Join(dir, "node_modules")); !os.IsNotExist(err) {
		t.Error("ignored directory survived")
	}
}

func TestNewFromFile(t *testing.T) {
	t.Run("missing file is an empty filter", func(t *testing.T) {
		f, err := NewFromFile(filepath.Join(t.TempDir(), "nope"))
		if err != nil {
			t.Fatalf("NewFromFile() error = %v", err)
		}
		if got, _ := f.IsIgnored("anything"); got {
			t.Error("empty filter should ignore nothing")
		}
	})

	t.Run("reads rules line by line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".cgignore")
		if err := os.WriteFile(path, []byte("*.log\n# note\n!keep.log\n"), 0644); err != nil {
			t.Fatal(err)
		}
		f, err := NewFromFile(path)
		if err != nil {
			t.Fatalf("NewFromFile() error = %v", err)
		}
		if got, _ := f.IsIgnored("x.log"); !got {
			t.Error("x.log should be ignored")
		}
		if got, _ := f.IsIgnored("keep.log"); got {
			t.Error("keep.log should be kept")
		}
	})
}

func TestTranslate(t *testing.T) {
	// Spot-check the generated expressions against full paths.
	tests := []struct {
		pat   string
		path  string
		match bool
	}{
		{"foo", "foo", true},
		{"foo", "a/foo", true},
		{"foo", "foobar", false},
		{"foo/", "foo/", true},
		{"foo/", "foo", false},
		{"/foo", "foo", true},
		{"/foo", "a/foo", false},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.pat+"~"+tt.path, func(t *testing.T) {
			p, err := compilePattern(tt.pat, tt.pat)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.pat, err)
			}
			if got := p.Match(tt.path); got != tt.match {
				t.Errorf("pattern %q match %q = %v, want %v", tt.pat, tt.path, got, tt.match)
			}
		})
	}
}
