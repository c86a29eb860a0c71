package subtree

// Node is one entry of a logical submission tree before it is persisted.
// There are exactly two kinds: *Dir and *Leaf. Code walking a tree must
// type-switch over both and treat any other type as a programming error.
type Node interface {
	// NodeName returns the logical (user-visible) name of the entry.
	NodeName() string
}

// Leaf is a single file. Its bytes live in the blob store under DiskName,
// an opaque storage key that is never derived from the user's filename.
type Leaf struct {
	Name     string
	DiskName string
}

func (l *Leaf) NodeName() string { return l.Name }

// Dir is a directory with zero or more children. Child order carries no
// meaning; consumers that need determinism sort on name themselves.
type Dir struct {
	Name    string
	Entries []Node
}

func (d *Dir) NodeName() string { return d.Name }

// Tree is the root directory of one composed submission, annotated with the
// cumulative decoded size of all leaves in bytes.
type Tree struct {
	Dir
	Size int64
}

// Dehead collapses single-child directory chains at the top of the tree: as
// long as the directory has exactly one child and that child is a directory,
// the child's children are pulled up. A single leaf child stops the collapse.
// Deheading an already-deheaded tree is a no-op.
func (d *Dir) Dehead() {
	for len(d.Entries) == 1 {
		sub, ok := d.Entries[0].(*Dir)
		if !ok {
			return
		}
		d.Entries = sub.Entries
	}
}

// ContainsFile reports whether the tree holds at least one leaf anywhere.
// A tree of only (nested) directories is considered empty for submission
// purposes.
func (d *Dir) ContainsFile() bool {
	stack := []*Dir{d}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, entry := range cur.Entries {
			switch n := entry.(type) {
			case *Leaf:
				return true
			case *Dir:
				stack = append(stack, n)
			}
		}
	}
	return false
}

// Leaves returns every leaf in the tree in walk order.
func (d *Dir) Leaves() []*Leaf {
	var out []*Leaf
	stack := []*Dir{d}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, entry := range cur.Entries {
			switch n := entry.(type) {
			case *Leaf:
				out = append(out, n)
			case *Dir:
				stack = append(stack, n)
			}
		}
	}
	return out
}
