package subtree_test

import (
	"testing"

	"subtree-go/internal/subtree"
)

func TestReservedNames_Escape(t *testing.T) {
	reserved := subtree.NewReservedNames(subtree.DefaultReservedNames)

	tests := []struct {
		name    string
		in      string
		want    string
		escaped bool
	}{
		{"plain name untouched", "main.go", "main.go", false},
		{"exact reserved name", ".cg-grade", ".cg-grade" + subtree.EscapeMarker, true},
		{"prefix of reserved name", ".cg-grade.bak", ".cg-grade.bak" + subtree.EscapeMarker, true},
		{"dot", ".", "." + subtree.EscapeMarker, true},
		{"dotdot", "..", ".." + subtree.EscapeMarker, true},
		{"hidden but not reserved", ".gitignore", ".gitignore", false},
		{"reserved name as substring only", "my.cg-grade", "my.cg-grade", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, escaped := reserved.Escape(tt.in)
			if got != tt.want || escaped != tt.escaped {
				t.Errorf("Escape(%q) = (%q, %v), want (%q, %v)",
					tt.in, got, escaped, tt.want, tt.escaped)
			}
		})
	}

	t.Run("already escaped names escape again", func(t *testing.T) {
		once, _ := reserved.Escape(".api-socket")
		twice, escaped := reserved.Escape(once)
		if !escaped {
			t.Fatal("re-submitted escaped name should escape again")
		}
		if twice == once {
			t.Error("second escape did not change the name")
		}
	})
}
