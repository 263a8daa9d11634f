package sheetcalc

// CellKey addresses a cell across the whole workbook (sheet index plus
// row/col), the key the dependency graph and calculation driver track
// state by.
type CellKey struct {
	Sheet    int
	Row, Col uint32
}

// rangeKey addresses a range across the whole workbook.
type rangeKey struct {
	Sheet int
	Range RangeAddress
}

// depNode is one formula cell's edges: the cells and ranges it reads
// from (precedents) and the cells that read from it (dependents).
type depNode struct {
	precedents      map[CellKey]struct{}
	dependents      map[CellKey]struct{}
	rangePrecedents map[rangeKey]struct{}
	dirty           bool
}

func newDepNode() *depNode {
	return &depNode{
		precedents:      make(map[CellKey]struct{}),
		dependents:      make(map[CellKey]struct{}),
		rangePrecedents: make(map[rangeKey]struct{}),
	}
}

// DependencyGraph tracks, for every formula cell, the cells/ranges it
// reads (precedents) and the cells that read it (dependents), plus a
// dirty set and a volatile-cell set, to drive recalculation.
type DependencyGraph struct {
	nodes          map[CellKey]*depNode
	rangeObservers map[rangeKey]map[CellKey]struct{}
	dirtySet       map[CellKey]struct{}
	volatileCells  map[CellKey]struct{}
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellKey]*depNode),
		rangeObservers: make(map[rangeKey]map[CellKey]struct{}),
		dirtySet:       make(map[CellKey]struct{}),
		volatileCells:  make(map[CellKey]struct{}),
	}
}

func (dg *DependencyGraph) getOrCreate(key CellKey) *depNode {
	n, ok := dg.nodes[key]
	if !ok {
		n = newDepNode()
		dg.nodes[key] = n
	}
	return n
}

// ref is one precedent extracted from a formula's AST: either a single
// cell or a range, both sheet-resolved.
type ref struct {
	IsRange bool
	Cell    CellKey
	Range   rangeKey
}

// collectRefs walks ast's references, resolving sheet-qualified names
// against book (unqualified references resolve to sheetIndex), and
// returns the precedent list SetPrecedents expects.
func collectRefs(ast ASTNode, book *Workbook, sheetIndex int) []ref {
	var out []ref
	ast.visitRefs(func(hasSheet bool, sheet string, isRange bool, addr CellAddress, rng RangeAddress) {
		idx := sheetIndex
		if hasSheet {
			if i, ok := book.SheetIndex(sheet); ok {
				idx = i
			} else {
				return
			}
		}
		if isRange {
			out = append(out, ref{IsRange: true, Range: rangeKey{Sheet: idx, Range: rng}})
		} else {
			out = append(out, ref{Cell: CellKey{Sheet: idx, Row: addr.Row, Col: addr.Col}})
		}
	})
	return out
}

// SetPrecedents replaces key's outgoing edges with refs, rewiring the
// dependents/rangeObservers side-tables accordingly. The graph is
// rebuilt for a cell whenever its formula is (re)installed.
func (dg *DependencyGraph) SetPrecedents(key CellKey, refs []ref) {
	dg.ClearPrecedents(key)
	node := dg.getOrCreate(key)
	for _, r := range refs {
		if r.IsRange {
			node.rangePrecedents[r.Range] = struct{}{}
			if dg.rangeObservers[r.Range] == nil {
				dg.rangeObservers[r.Range] = make(map[CellKey]struct{})
			}
			dg.rangeObservers[r.Range][key] = struct{}{}
			continue
		}
		node.precedents[r.Cell] = struct{}{}
		dg.getOrCreate(r.Cell).dependents[key] = struct{}{}
	}
}

// ClearPrecedents removes key's outgoing edges (cell and range), used
// before a cell's formula is replaced or removed.
func (dg *DependencyGraph) ClearPrecedents(key CellKey) {
	node, ok := dg.nodes[key]
	if !ok {
		return
	}
	for p := range node.precedents {
		if pn, ok := dg.nodes[p]; ok {
			delete(pn.dependents, key)
		}
	}
	node.precedents = make(map[CellKey]struct{})
	for r := range node.rangePrecedents {
		if obs, ok := dg.rangeObservers[r]; ok {
			delete(obs, key)
			if len(obs) == 0 {
				delete(dg.rangeObservers, r)
			}
		}
	}
	node.rangePrecedents = make(map[rangeKey]struct{})
}

// MarkDirty flags key itself as needing recalculation.
func (dg *DependencyGraph) MarkDirty(key CellKey) {
	dg.dirtySet[key] = struct{}{}
	if n, ok := dg.nodes[key]; ok {
		n.dirty = true
	}
}

// MarkDirtyDependents marks key and every cell transitively depending
// on it (directly, or through a range that contains it) dirty. Called
// whenever a plain value changes under set_cell; the calculation driver
// does not call it.
func (dg *DependencyGraph) MarkDirtyDependents(key CellKey) {
	dg.MarkDirty(key)
	for dep := range dg.transitiveDependents(key) {
		dg.MarkDirty(dep)
	}
}

func (dg *DependencyGraph) transitiveDependents(key CellKey) map[CellKey]struct{} {
	visited := make(map[CellKey]struct{})
	var walk func(CellKey)
	walk = func(k CellKey) {
		direct := dg.directDependents(k)
		for d := range direct {
			if _, seen := visited[d]; seen {
				continue
			}
			visited[d] = struct{}{}
			walk(d)
		}
	}
	walk(key)
	return visited
}

func (dg *DependencyGraph) directDependents(key CellKey) map[CellKey]struct{} {
	out := make(map[CellKey]struct{})
	if n, ok := dg.nodes[key]; ok {
		for d := range n.dependents {
			out[d] = struct{}{}
		}
	}
	for rk, observers := range dg.rangeObservers {
		if rk.Sheet == key.Sheet && rk.Range.Contains(CellAddress{Row: key.Row, Col: key.Col}) {
			for d := range observers {
				out[d] = struct{}{}
			}
		}
	}
	return out
}

// MarkVolatile records whether key's formula contains a volatile
// function (NOW, TODAY, RAND, RANDBETWEEN); volatile functions reseed
// the dirty set on every calculation pass, so Calculate always
// revisits it.
func (dg *DependencyGraph) MarkVolatile(key CellKey, volatile bool) {
	if volatile {
		dg.volatileCells[key] = struct{}{}
	} else {
		delete(dg.volatileCells, key)
	}
}

// VolatileCells returns every cell currently marked volatile.
func (dg *DependencyGraph) VolatileCells() []CellKey {
	out := make([]CellKey, 0, len(dg.volatileCells))
	for k := range dg.volatileCells {
		out = append(out, k)
	}
	return out
}

// DirtyCells returns the current dirty set.
func (dg *DependencyGraph) DirtyCells() []CellKey {
	out := make([]CellKey, 0, len(dg.dirtySet))
	for k := range dg.dirtySet {
		out = append(out, k)
	}
	return out
}

// ClearDirty removes key from the dirty set.
func (dg *DependencyGraph) ClearDirty(key CellKey) {
	delete(dg.dirtySet, key)
	if n, ok := dg.nodes[key]; ok {
		n.dirty = false
	}
}

// RemoveSheet drops every node, edge and range observer referencing
// sheetIndex, used when a worksheet is deleted from the workbook.
func (dg *DependencyGraph) RemoveSheet(sheetIndex int) {
	for k := range dg.nodes {
		if k.Sheet == sheetIndex {
			dg.ClearPrecedents(k)
			delete(dg.nodes, k)
			delete(dg.dirtySet, k)
			delete(dg.volatileCells, k)
		}
	}
	for rk, observers := range dg.rangeObservers {
		if rk.Sheet == sheetIndex {
			delete(dg.rangeObservers, rk)
			continue
		}
		for k := range observers {
			if k.Sheet == sheetIndex {
				delete(observers, k)
			}
		}
	}
}

// topoOrderFrom computes a calculation order covering seeds and every
// cell transitively reachable through the precedents relation starting
// from seeds' dependents closure, via post-order DFS (a node is only
// appended once all of its precedents have been visited), and flags in
// cyclic every visited cell that is part of a cycle or depends, directly
// or transitively, on a flagged cell. Restricted to the dirty subgraph
// rather than the whole graph, so an untouched workbook region costs
// nothing to recalculate.
func (dg *DependencyGraph) topoOrderFrom(seeds []CellKey) (order []CellKey, cyclic map[CellKey]bool) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[CellKey]int)
	cyclic = make(map[CellKey]bool)

	var visit func(key CellKey)
	visit = func(key CellKey) {
		switch state[key] {
		case visiting:
			cyclic[key] = true
			return
		case visited:
			return
		}
		state[key] = visiting
		if n, ok := dg.nodes[key]; ok {
			for p := range n.precedents {
				visit(p)
				if cyclic[p] {
					cyclic[key] = true
				}
			}
			for r := range n.rangePrecedents {
				r.Range.Each(func(addr CellAddress) bool {
					pk := CellKey{Sheet: r.Sheet, Row: addr.Row, Col: addr.Col}
					if _, ok := dg.nodes[pk]; ok {
						visit(pk)
						if cyclic[pk] {
							cyclic[key] = true
						}
					}
					return true
				})
			}
		}
		state[key] = visited
		order = append(order, key)
	}

	full := make(map[CellKey]struct{})
	for _, s := range seeds {
		full[s] = struct{}{}
		for d := range dg.transitiveDependents(s) {
			full[d] = struct{}{}
		}
	}
	for k := range full {
		visit(k)
	}
	return order, cyclic
}
