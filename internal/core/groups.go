package core

// GroupAccumulator collects payload bodies by group key. Groups come back
// in the order their key was first seen; members keep arrival order.
// Ordering is held in an explicit key list, never in map iteration.
//
// Everything stays in memory until the run finishes processing; a stream
// with many large groups costs memory proportional to its size.
type GroupAccumulator struct {
	order []*Group
	index map[string]*Group
	total int
}

// NewGroupAccumulator creates an empty accumulator.
func NewGroupAccumulator() *GroupAccumulator {
	return &GroupAccumulator{index: make(map[string]*Group)}
}

// Insert appends body to the group for key, creating the group if absent.
func (a *GroupAccumulator) Insert(key string, body PayloadBody) {
	g, ok := a.index[key]
	if !ok {
		g = &Group{Key: key}
		a.index[key] = g
		a.order = append(a.order, g)
	}
	g.Members = append(g.Members, body)
	a.total++
}

// Groups returns the groups in first-seen key order.
func (a *GroupAccumulator) Groups() []*Group {
	out := make([]*Group, len(a.order))
	copy(out, a.order)
	return out
}

// Get returns the group for key.
func (a *GroupAccumulator) Get(key string) (*Group, bool) {
	g, ok := a.index[key]
	return g, ok
}

// Len returns the number of distinct groups.
func (a *GroupAccumulator) Len() int {
	return len(a.order)
}

// Members returns the number of bodies across all groups.
func (a *GroupAccumulator) Members() int {
	return a.total
}
