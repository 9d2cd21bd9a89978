package cell

import "fmt"

// DeathMode selects how a lineage tree records cell death.
type DeathMode int

const (
	// DeathMarker attaches a dead-marker leaf below the dying cell, so the
	// tree keeps the full division history.
	DeathMarker DeathMode = iota

	// DeathPrune removes the dying cell outright and unlinks any ancestor
	// left without children, keeping only nodes needed to reconstruct the
	// lineage of cells that are still alive.
	DeathPrune
)

// None is the null node handle.
const None = -1

// Node is one lineage-tree node. Mutations holds only the mutations the
// cell acquired at its own birth (or, for time-dependent mutation models,
// at its finalization); the full genotype is accumulated along the root
// path with MutationsFromRoot.
type Node struct {
	ID        int64
	BirthTime float64
	Mutations []int
	Clone     int
	Alive     bool

	// Marker is set on the synthetic dead-leaf nodes DeathMarker mode
	// attaches; a marker node never divides and carries no mutations.
	Marker bool

	// Parent is a non-owning back-reference for traversal and pruning.
	Parent int

	// Left and Right are the owned children, None when absent.
	Left  int
	Right int
}

// Tree is an arena of lineage nodes addressed by stable integer handles.
// Ownership is the child-index edges; the parent field is a plain back
// index, never a second owning link, so the structure has no cycles and
// pruning is O(depth).
type Tree struct {
	mode  DeathMode
	nodes []Node
	used  []bool
	free  []int
	live  int
}

// NewTree creates an empty lineage tree with the given death mode.
func NewTree(mode DeathMode) *Tree {
	return &Tree{mode: mode}
}

// Mode returns the tree's death mode.
func (t *Tree) Mode() DeathMode { return t.mode }

// Len returns the number of nodes currently held by the arena, including
// dead internal nodes and markers.
func (t *Tree) Len() int { return t.live }

// LiveLeaves returns the number of live cells the tree tracks: leaves
// whose Alive flag is set. Markers and dead internal nodes are excluded.
func (t *Tree) LiveLeaves() int {
	n := 0
	for h, used := range t.used {
		if used && t.nodes[h].Alive {
			n++
		}
	}
	return n
}

func (t *Tree) alloc(n Node) int {
	if k := len(t.free); k > 0 {
		h := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[h] = n
		t.used[h] = true
		t.live++
		return h
	}
	t.nodes = append(t.nodes, n)
	t.used = append(t.used, true)
	t.live++
	return len(t.nodes) - 1
}

func (t *Tree) release(h int) {
	t.nodes[h] = Node{Parent: None, Left: None, Right: None}
	t.used[h] = false
	t.free = append(t.free, h)
	t.live--
}

// Valid reports whether h addresses a node currently in the tree.
func (t *Tree) Valid(h int) bool {
	return h >= 0 && h < len(t.used) && t.used[h]
}

// Node returns a pointer into the arena for the given handle. The pointer
// is invalidated by the next AddChildren call.
func (t *Tree) Node(h int) *Node {
	if !t.Valid(h) {
		panic(fmt.Sprintf("cell: invalid tree handle %d", h))
	}
	return &t.nodes[h]
}

// NewRoot adds a founder node with no parent and returns its handle.
func (t *Tree) NewRoot(id int64, birth float64) int {
	return t.alloc(Node{
		ID:        id,
		BirthTime: birth,
		Alive:     true,
		Parent:    None,
		Left:      None,
		Right:     None,
	})
}

// AddChildren attaches two fresh live children to parent, which must be a
// live leaf. The parent stops being a live cell: its payload continues in
// the children. Returns the two child handles.
func (t *Tree) AddChildren(parent int, leftID, rightID int64, birth float64) (int, int) {
	p := t.Node(parent)
	if !p.Alive {
		panic(fmt.Sprintf("cell: dividing dead node %d", parent))
	}
	if p.Left != None || p.Right != None {
		panic(fmt.Sprintf("cell: dividing internal node %d", parent))
	}
	clone := p.Clone
	p.Alive = false
	l := t.alloc(Node{ID: leftID, BirthTime: birth, Clone: clone, Alive: true, Parent: parent, Left: None, Right: None})
	r := t.alloc(Node{ID: rightID, BirthTime: birth, Clone: clone, Alive: true, Parent: parent, Left: None, Right: None})
	// alloc may have grown the arena; re-resolve the parent.
	t.nodes[parent].Left = l
	t.nodes[parent].Right = r
	return l, r
}

// Kill records the death of the live leaf h at the given time, following
// the tree's death mode. In DeathPrune mode the handle (and possibly some
// of its ancestors) becomes invalid. Returns an error on structural
// corruption.
func (t *Tree) Kill(h int, time float64) error {
	n := t.Node(h)
	if !n.Alive {
		return fmt.Errorf("cell: killing dead node %d", h)
	}
	n.Alive = false
	if t.mode == DeathMarker {
		m := t.alloc(Node{
			ID:        n.ID,
			BirthTime: time,
			Clone:     n.Clone,
			Marker:    true,
			Parent:    h,
			Left:      None,
			Right:     None,
		})
		t.nodes[h].Left = m
		return nil
	}
	return t.Prune(h)
}

// Prune removes h if it is a childless dead node, then walks upward
// releasing every ancestor left dead and childless. Pruning a handle that
// was already removed, or a node still needed for lineage reconstruction,
// is a no-op.
func (t *Tree) Prune(h int) error {
	for t.Valid(h) {
		n := &t.nodes[h]
		if n.Alive || n.Left != None || n.Right != None {
			return nil
		}
		parent := n.Parent
		if parent != None {
			pn := &t.nodes[parent]
			switch h {
			case pn.Left:
				pn.Left = None
			case pn.Right:
				pn.Right = None
			default:
				return fmt.Errorf("cell: node %d not a child of its parent %d", h, parent)
			}
		}
		t.release(h)
		h = parent
	}
	return nil
}

// MutationsFromRoot returns the full mutation set of node h: the union of
// the per-node mutation batches along the path from the root down to h,
// oldest first.
func (t *Tree) MutationsFromRoot(h int) []int {
	var path []int
	for cur := h; cur != None; cur = t.Node(cur).Parent {
		path = append(path, cur)
	}
	var out []int
	for i := len(path) - 1; i >= 0; i-- {
		out = append(out, t.nodes[path[i]].Mutations...)
	}
	return out
}

// MutationCountFromRoot returns the size of the full mutation set of h
// without materializing it.
func (t *Tree) MutationCountFromRoot(h int) int {
	n := 0
	for cur := h; cur != None; cur = t.Node(cur).Parent {
		n += len(t.nodes[cur].Mutations)
	}
	return n
}
