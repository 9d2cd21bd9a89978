// Package cell provides the two cell representations the simulation engines
// operate on: a flat cell carrying its full mutation list, and an arena-backed
// binary lineage tree whose nodes carry only the mutations acquired since
// their birth (a leaf's full genotype is the union along its root path).
package cell

// Cell is the flat representation of a live cell: the complete set of
// mutation ids it carries plus its subclone tag.
type Cell struct {
	// Mutations holds every mutation id this cell carries, oldest first.
	Mutations []int

	// Clone is the subclone tag. BaselineClone marks cells that belong to
	// no tracked fitter lineage.
	Clone int
}

// BaselineClone is the clone tag of cells outside any tracked subclone.
const BaselineClone = 0

// NewCell creates a flat cell with no mutations on the baseline clone.
func NewCell() Cell {
	return Cell{Clone: BaselineClone}
}

// AddMutations appends n fresh mutation ids starting at nextID and returns
// the next unused id. n <= 0 leaves the cell unchanged.
func (c *Cell) AddMutations(n int, nextID int) int {
	for i := 0; i < n; i++ {
		c.Mutations = append(c.Mutations, nextID)
		nextID++
	}
	return nextID
}

// CloneOf returns a deep copy of the cell. The mutation slice is copied so
// the two cells never alias.
func (c Cell) CloneOf() Cell {
	dup := Cell{Clone: c.Clone}
	if len(c.Mutations) > 0 {
		dup.Mutations = make([]int, len(c.Mutations))
		copy(dup.Mutations, c.Mutations)
	}
	return dup
}

// MutationCount returns the number of mutations the cell carries.
func (c Cell) MutationCount() int { return len(c.Mutations) }
