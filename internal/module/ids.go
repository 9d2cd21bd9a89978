package module

// IDGenerator hands out the monotonically increasing identifiers a run
// consumes: cell ids, mutation ids, and module ids. One generator is owned
// by one run and threaded explicitly through every call that mints an id.
type IDGenerator struct {
	nextCell     int64
	nextMutation int
	nextModule   int
}

// NewIDGenerator returns a generator whose id streams all start at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{nextCell: 1, nextMutation: 1, nextModule: 1}
}

// CellID returns the next cell id.
func (g *IDGenerator) CellID() int64 {
	id := g.nextCell
	g.nextCell++
	return id
}

// CellIDPair returns two consecutive cell ids for a division's offspring.
func (g *IDGenerator) CellIDPair() (int64, int64) {
	a := g.nextCell
	g.nextCell += 2
	return a, a + 1
}

// MutationIDs reserves a block of n mutation ids and returns the first.
// Reserving zero ids returns the next unreserved id unchanged.
func (g *IDGenerator) MutationIDs(n int) int {
	first := g.nextMutation
	if n > 0 {
		g.nextMutation += n
	}
	return first
}

// ModuleID returns the next module id.
func (g *IDGenerator) ModuleID() int {
	id := g.nextModule
	g.nextModule++
	return id
}

// MutationsMinted returns how many mutation ids have been handed out.
func (g *IDGenerator) MutationsMinted() int { return g.nextMutation - 1 }
