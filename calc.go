package sheetcalc

import (
	"sort"
	"strings"
)

// CalcOptions configures CalculateWithOptions.
type CalcOptions struct {
	// Iterative enables convergence-style recalculation of cyclic
	// formulas instead of failing them with CircularReference, mirrored
	// from xl/workbook.xml's <calcPr iterate="1">.
	Iterative bool
	// MaxIterations bounds the iterative pass count; ignored unless
	// Iterative is set. Zero means DefaultMaxIterations.
	MaxIterations int
	// MaxChange stops iteration early once every participating cell's
	// value changes by less than this amount between passes. Zero means
	// DefaultMaxChange.
	MaxChange float64
	// Progress, if non-nil, is invoked after each cell is recalculated
	// with (completed, total); returning false aborts the calculation
	// with a Cancelled error and no cached values are changed further.
	Progress func(done, total int) bool
}

const (
	DefaultMaxIterations = 100
	DefaultMaxChange     = 0.001
)

// Calculate runs a full recalculation pass with default (non-iterative)
// options.
func (b *Workbook) Calculate() error {
	return b.CalculateWithOptions(CalcOptions{})
}

// CalculateWithOptions performs:
//  1. seed the dirty set with every cell marked dirty since the last
//     calculation, plus all volatile cells;
//  2. compute a topological calculation order over the dirty
//     transitive-dependents closure;
//  3. detect cycles within that closure;
//  4. evaluate every non-cyclic cell in order, caching its value and
//     clearing its dirty flag;
//  5. for cells in a cycle or downstream of one: non-iterative mode
//     assigns Error(#REF!) to every such cell and lists all of them, in
//     (sheet, row, col) order with the first repeated at the end, in the
//     returned CircularReference OpError; iterative mode instead
//     repeats steps 2-4 over the cyclic subgraph until values stop
//     changing by more than MaxChange or MaxIterations passes run out;
//  6. clear the dirty set.
func (b *Workbook) CalculateWithOptions(opts CalcOptions) error {
	for _, key := range b.graph.VolatileCells() {
		b.graph.MarkDirty(key)
	}

	seeds := b.graph.DirtyCells()
	if len(seeds) == 0 {
		return nil
	}
	order, cyclic := b.graph.topoOrderFrom(seeds)

	var firstCycle []CellKey
	total := len(order)
	done := 0
	for _, key := range order {
		if cyclic[key] {
			if firstCycle == nil {
				firstCycle = collectCycleMembers(cyclic)
			}
			continue
		}
		b.evalAndCache(key)
		b.graph.ClearDirty(key)
		done++
		if opts.Progress != nil && !opts.Progress(done, total) {
			return NewOpErrorf(ErrCancelled, "calculate cancelled after %d/%d cells", done, total)
		}
	}

	if len(firstCycle) > 0 {
		if opts.Iterative {
			if err := b.iterateCycle(firstCycle, opts); err != nil {
				return err
			}
		} else {
			for key := range cyclic {
				b.setCellError(key, ErrRef)
				b.graph.ClearDirty(key)
			}
			return NewOpErrorf(ErrCircularReference, "circular reference detected: %s", formatCycle(firstCycle))
		}
	}

	for key := range cyclic {
		b.graph.ClearDirty(key)
	}
	return nil
}

// iterateCycle repeats evaluation of a cyclic subgraph (in CellKey
// order, for determinism) until every cell's numeric value changes by
// less than opts.MaxChange between passes, or MaxIterations passes run
// out.
func (b *Workbook) iterateCycle(members []CellKey, opts CalcOptions) error {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	maxChange := opts.MaxChange
	if maxChange <= 0 {
		maxChange = DefaultMaxChange
	}
	sort.Slice(members, func(i, j int) bool { return cellKeyLess(members[i], members[j]) })

	prev := make(map[CellKey]float64, len(members))
	for pass := 0; pass < maxIter; pass++ {
		maxDelta := 0.0
		for _, key := range members {
			b.evalAndCache(key)
			v := b.cellAt(key)
			num := 0.0
			if v.Kind == KindNumber {
				num = v.Num
			}
			if delta := num - prev[key]; delta > maxDelta {
				maxDelta = delta
			} else if -delta > maxDelta {
				maxDelta = -delta
			}
			prev[key] = num
		}
		if maxDelta < maxChange {
			break
		}
	}
	for _, key := range members {
		b.graph.ClearDirty(key)
	}
	return nil
}

func cellKeyLess(a, b CellKey) bool {
	if a.Sheet != b.Sheet {
		return a.Sheet < b.Sheet
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

func collectCycleMembers(cyclic map[CellKey]bool) []CellKey {
	out := make([]CellKey, 0, len(cyclic))
	for k, v := range cyclic {
		if v {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return cellKeyLess(out[i], out[j]) })
	return out
}

func formatCycle(members []CellKey) string {
	if len(members) == 0 {
		return "[]"
	}
	addrs := make([]string, 0, len(members)+1)
	for _, k := range members {
		addrs = append(addrs, FormatAddress(CellAddress{Row: k.Row, Col: k.Col}))
	}
	addrs = append(addrs, addrs[0])
	return "[" + strings.Join(addrs, ",") + "]"
}

func (b *Workbook) cellAt(key CellKey) Value {
	ws, ok := b.WorksheetByIndex(key.Sheet)
	if !ok {
		return Empty
	}
	return ws.GetCalculatedValue(CellAddress{Row: key.Row, Col: key.Col})
}

// evalAndCache evaluates the formula at key (if any) and writes the
// result into its FormulaCell's cache.
func (b *Workbook) evalAndCache(key CellKey) {
	ws, ok := b.WorksheetByIndex(key.Sheet)
	if !ok {
		return
	}
	addr := CellAddress{Row: key.Row, Col: key.Col}
	rec := ws.storage.Get(addr)
	if rec == nil || rec.Value.Kind != KindFormula || rec.Value.Formula.AST == nil {
		return
	}
	fv := EvalFormula(b, key.Sheet, addr, rec.Value.Formula.AST)
	rec.Value.Formula.Cached = formulaValueToValue(b, fv)
	rec.Value.Formula.NeedsRecalc = false
}

func (b *Workbook) setCellError(key CellKey, kind CellErrorKind) {
	ws, ok := b.WorksheetByIndex(key.Sheet)
	if !ok {
		return
	}
	addr := CellAddress{Row: key.Row, Col: key.Col}
	rec := ws.storage.Get(addr)
	if rec == nil || rec.Value.Kind != KindFormula {
		return
	}
	rec.Value.Formula.Cached = ErrorValue(kind)
	rec.Value.Formula.NeedsRecalc = false
}

// formulaValueToValue converts an evaluation result back into the cell
// Value model, interning strings and collapsing Range/Array results to
// their top-left scalar.
func formulaValueToValue(b *Workbook, fv FormulaValue) Value {
	switch fv.Kind {
	case FVNumber:
		return NumberValue(fv.Num)
	case FVString:
		return StringValue(b.strings.Intern(fv.Str))
	case FVBoolean:
		return BoolValue(fv.Bool)
	case FVError:
		return ErrorValue(fv.Err)
	case FVEmpty:
		return Empty
	case FVRange:
		if fv.RangeAddr.IsSingleCell() {
			ws, ok := b.WorksheetByIndex(fv.RangeSheet)
			if ok {
				return ws.GetCalculatedValue(fv.RangeAddr.Start)
			}
		}
		return ErrorValue(ErrValue)
	case FVArray:
		if len(fv.Array) > 0 && len(fv.Array[0]) > 0 {
			return formulaValueToValue(b, fv.Array[0][0])
		}
		return Empty
	default:
		return Empty
	}
}
