package database_test

import (
	"errors"
	"testing"
	"time"

	"subtree-go/internal/database"
	"subtree-go/internal/subtree"
	"subtree-go/internal/testutil"
)

// sampleTree builds:
//
//	top/
//	  Main.java
//	  docs/
//	    readme.md
func sampleTree() *subtree.Dir {
	return &subtree.Dir{
		Name: "top",
		Entries: []subtree.Node{
			&subtree.Leaf{Name: "Main.java", DiskName: "disk-main"},
			&subtree.Dir{
				Name: "docs",
				Entries: []subtree.Node{
					&subtree.Leaf{Name: "readme.md", DiskName: "disk-readme"},
				},
			},
		},
	}
}

func newStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	return testutil.NewTestStore(t, testutil.FixedClock(), testutil.NewStubKeyGenerator())
}

func TestSQLiteStore_InsertTree(t *testing.T) {
	t.Run("persists the whole tree", func(t *testing.T) {
		store := newStore(t)

		rootID, err := store.InsertTree("sub-1", sampleTree())
		if err != nil {
			t.Fatalf("InsertTree() error = %v", err)
		}

		root, err := store.GetRoot("sub-1", subtree.OwnerNone)
		if err != nil {
			t.Fatalf("GetRoot() error = %v", err)
		}
		if root.ID != rootID {
			t.Errorf("root ID = %q, want %q", root.ID, rootID)
		}
		if root.Name != "top" || !root.IsDirectory || root.ParentID != "" {
			t.Errorf("unexpected root record: %+v", root)
		}
		if root.Owner != subtree.OwnerBoth {
			t.Errorf("root owner = %q, want %q", root.Owner, subtree.OwnerBoth)
		}
	})

	t.Run("rejects a second tree for the submission", func(t *testing.T) {
		store := newStore(t)

		if _, err := store.InsertTree("sub-1", sampleTree()); err != nil {
			t.Fatal(err)
		}
		_, err := store.InsertTree("sub-1", sampleTree())
		if !errors.Is(err, subtree.ErrTreeExists) {
			t.Errorf("InsertTree() error = %v, want ErrTreeExists", err)
		}
	})

	t.Run("separates submissions", func(t *testing.T) {
		store := newStore(t)

		if _, err := store.InsertTree("sub-1", sampleTree()); err != nil {
			t.Fatal(err)
		}
		if _, err := store.InsertTree("sub-2", sampleTree()); err != nil {
			t.Errorf("a second submission should get its own tree: %v", err)
		}
	})
}

func TestSQLiteStore_Lookups(t *testing.T) {
	store := newStore(t)
	rootID, err := store.InsertTree("sub-1", sampleTree())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("GetFile", func(t *testing.T) {
		f, err := store.GetFile(rootID)
		if err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
		if f.Name != "top" {
			t.Errorf("Name = %q, want top", f.Name)
		}
	})

	t.Run("GetFile missing", func(t *testing.T) {
		_, err := store.GetFile("no-such-id")
		if !errors.Is(err, subtree.ErrNotFound) {
			t.Errorf("GetFile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetRoot missing submission", func(t *testing.T) {
		_, err := store.GetRoot("no-such-sub", subtree.OwnerNone)
		if !errors.Is(err, subtree.ErrNotFound) {
			t.Errorf("GetRoot() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ChildrenMapping(t *testing.T) {
	store := newStore(t)
	rootID, err := store.InsertTree("sub-1", &subtree.Dir{
		Name: "top",
		Entries: []subtree.Node{
			&subtree.Leaf{Name: "zeta.txt", DiskName: "d1"},
			&subtree.Leaf{Name: "Alpha.txt", DiskName: "d2"},
			&subtree.Dir{Name: "mid"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	mapping, err := store.ChildrenMapping("sub-1", subtree.OwnerNone)
	if err != nil {
		t.Fatalf("ChildrenMapping() error = %v", err)
	}

	roots := mapping[""]
	if len(roots) != 1 || roots[0].ID != rootID {
		t.Fatalf("mapping[\"\"] = %+v, want just the root", roots)
	}

	children := mapping[rootID]
	if len(children) != 3 {
		t.Fatalf("root children = %d, want 3", len(children))
	}
	// Sorted case-insensitively by name.
	want := []string{"Alpha.txt", "mid", "zeta.txt"}
	for i, name := range want {
		if children[i].Name != name {
			t.Errorf("children[%d].Name = %q, want %q", i, children[i].Name, name)
		}
	}
}

func TestSQLiteStore_FindChildren(t *testing.T) {
	store := newStore(t)
	rootID, err := store.InsertTree("sub-1", &subtree.Dir{
		Name: "top",
		Entries: []subtree.Node{
			&subtree.Leaf{Name: "thing", DiskName: "d1"},
			&subtree.Dir{Name: "thing"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	files, err := store.FindChildren(rootID, "thing", false, subtree.OwnerNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].IsDirectory {
		t.Errorf("FindChildren(isDir=false) = %+v, want the leaf only", files)
	}

	dirs, err := store.FindChildren(rootID, "thing", true, subtree.OwnerNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || !dirs[0].IsDirectory {
		t.Errorf("FindChildren(isDir=true) = %+v, want the directory only", dirs)
	}
}

func TestSQLiteStore_HasChildNamed(t *testing.T) {
	store := newStore(t)
	rootID, err := store.InsertTree("sub-1", sampleTree())
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := store.HasChildNamed(rootID, "Main.java", subtree.OwnerNone); err != nil || !ok {
		t.Errorf("HasChildNamed(Main.java) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, _ := store.HasChildNamed(rootID, "Other.java", subtree.OwnerNone); ok {
		t.Error("HasChildNamed(Other.java) = true, want false")
	}
}

func TestSQLiteStore_Rename(t *testing.T) {
	clock := testutil.FixedClock()
	store := testutil.NewTestStore(t, clock, testutil.NewStubKeyGenerator())

	rootID, err := store.InsertTree("sub-1", sampleTree())
	if err != nil {
		t.Fatal(err)
	}
	leaves, err := store.FindChildren(rootID, "Main.java", false, subtree.OwnerNone)
	if err != nil || len(leaves) != 1 {
		t.Fatalf("locating leaf: %v (%d found)", err, len(leaves))
	}
	leaf := leaves[0]

	clock.Advance(time.Minute)
	if err := store.Rename(leaf.ID, "App.java", rootID); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	got, err := store.GetFile(leaf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "App.java" || got.ParentID != rootID {
		t.Errorf("after rename: %+v", got)
	}
	if !got.ModifiedAt.After(leaf.ModifiedAt) {
		t.Errorf("ModifiedAt not bumped: %v -> %v", leaf.ModifiedAt, got.ModifiedAt)
	}

	if err := store.Rename("no-such-id", "x", rootID); !errors.Is(err, subtree.ErrNotFound) {
		t.Errorf("Rename() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SetOwner(t *testing.T) {
	store := newStore(t)
	rootID, err := store.InsertTree("sub-1", sampleTree())
	if err != nil {
		t.Fatal(err)
	}
	leaves, err := store.FindChildren(rootID, "Main.java", false, subtree.OwnerNone)
	if err != nil || len(leaves) != 1 {
		t.Fatalf("locating leaf: %v", err)
	}

	if err := store.SetOwner(leaves[0].ID, subtree.OwnerStudent); err != nil {
		t.Fatalf("SetOwner() error = %v", err)
	}
	got, err := store.GetFile(leaves[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != subtree.OwnerStudent {
		t.Errorf("owner = %q, want student", got.Owner)
	}

	// The retagged file disappears from student-excluded views.
	if ok, _ := store.HasChildNamed(rootID, "Main.java", subtree.OwnerStudent); ok {
		t.Error("student-owned file should be hidden from OwnerStudent-excluded queries")
	}
	if ok, _ := store.HasChildNamed(rootID, "Main.java", subtree.OwnerTeacher); !ok {
		t.Error("student-owned file should stay visible to OwnerTeacher-excluded queries")
	}

	if err := store.SetOwner("no-such-id", subtree.OwnerBoth); !errors.Is(err, subtree.ErrNotFound) {
		t.Errorf("SetOwner() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_DeleteTree(t *testing.T) {
	store := newStore(t)
	if _, err := store.InsertTree("sub-1", sampleTree()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertTree("sub-2", sampleTree()); err != nil {
		t.Fatal(err)
	}

	keys, err := store.DeleteTree("sub-1")
	if err != nil {
		t.Fatalf("DeleteTree() error = %v", err)
	}
	// Directories carry no disk names, so only the two leaves come back.
	if len(keys) != 2 {
		t.Fatalf("DeleteTree() keys = %v, want 2 entries", keys)
	}
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["disk-main"] || !found["disk-readme"] {
		t.Errorf("DeleteTree() keys = %v", keys)
	}

	if _, err := store.GetRoot("sub-1", subtree.OwnerNone); !errors.Is(err, subtree.ErrNotFound) {
		t.Errorf("GetRoot() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetRoot("sub-2", subtree.OwnerNone); err != nil {
		t.Errorf("other submission should survive: %v", err)
	}

	// Deleting an absent submission is a no-op.
	keys, err = store.DeleteTree("sub-1")
	if err != nil || len(keys) != 0 {
		t.Errorf("second DeleteTree() = (%v, %v), want empty", keys, err)
	}
}
