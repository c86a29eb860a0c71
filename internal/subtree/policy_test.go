package subtree_test

import (
	"testing"

	"subtree-go/internal/subtree"
)

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"keep", "delete", "error"} {
		p, ok := subtree.ParsePolicy(s)
		if !ok || p.String() != s {
			t.Errorf("ParsePolicy(%q) = (%v, %v)", s, p, ok)
		}
	}
	if _, ok := subtree.ParsePolicy("purge"); ok {
		t.Error("ParsePolicy accepted an unknown policy")
	}
}

func TestParseOwner(t *testing.T) {
	for _, s := range []string{"student", "teacher", "both", ""} {
		o, ok := subtree.ParseOwner(s)
		if !ok || string(o) != s {
			t.Errorf("ParseOwner(%q) = (%v, %v)", s, o, ok)
		}
	}
	if _, ok := subtree.ParseOwner("admin"); ok {
		t.Error("ParseOwner accepted an unknown owner")
	}
}
