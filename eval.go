package sheetcalc

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// caseFold is used for case-insensitive string comparisons and for
// sheet-name lookups.
var caseFold = cases.Fold()

func foldCase(s string) string { return caseFold.String(s) }

// FVKind tags the FormulaValue variant.
type FVKind uint8

const (
	FVEmpty FVKind = iota
	FVNumber
	FVString
	FVBoolean
	FVError
	FVArray
	FVRange
)

// FormulaValue is the result of evaluating part of a formula's AST: one
// of Number, String, Boolean, Error, Array(rows[][]), Range(ref), Empty.
type FormulaValue struct {
	Kind FVKind
	Num  float64
	Str  string
	Bool bool
	Err  CellErrorKind

	Array [][]FormulaValue

	RangeSheet int
	RangeAddr  RangeAddress
}

func fvNumber(n float64) FormulaValue  { return FormulaValue{Kind: FVNumber, Num: n} }
func fvString(s string) FormulaValue   { return FormulaValue{Kind: FVString, Str: s} }
func fvBool(b bool) FormulaValue       { return FormulaValue{Kind: FVBoolean, Bool: b} }
func fvError(k CellErrorKind) FormulaValue { return FormulaValue{Kind: FVError, Err: k} }
var fvEmpty = FormulaValue{Kind: FVEmpty}

// evalContext carries what AST evaluation needs: the workbook, the
// sheet a bare (unqualified) reference resolves against, and the cell
// currently being evaluated (for implicit-intersection reduction).
type evalContext struct {
	book *Workbook
	// sheet is the index of the sheet the formula's home cell lives on;
	// unqualified references resolve against it.
	sheet int
	cell  CellAddress
	// depth guards against runaway recursion from NAME lookups that
	// happen to resolve to a formula elsewhere (shouldn't occur given
	// calculation order, but Get/GetCalculatedValue on a dirty formula
	// cell during out-of-order access is defensive-coded).
	depth int
}

const maxEvalDepth = 256

// EvalFormula evaluates ast in the context of cell addr on sheet
// sheetIndex, reading other cells' cached values from book. Used both by
// the calculation driver and for standalone formula evaluation.
func EvalFormula(book *Workbook, sheetIndex int, addr CellAddress, ast ASTNode) FormulaValue {
	ev := &evalContext{book: book, sheet: sheetIndex, cell: addr}
	return ast.eval(ev)
}

func (n *NumberNode) eval(ev *evalContext) FormulaValue  { return fvNumber(n.Value) }
func (n *StringNode) eval(ev *evalContext) FormulaValue  { return fvString(n.Value) }
func (n *BooleanNode) eval(ev *evalContext) FormulaValue { return fvBool(n.Value) }
func (n *ErrorNode) eval(ev *evalContext) FormulaValue   { return fvError(n.Value) }

func (n *CellRefNode) eval(ev *evalContext) FormulaValue {
	sheetIdx, err := ev.resolveSheet(n.HasSheet, n.Sheet)
	if err != nil {
		return fvError(ErrRef)
	}
	return ev.readCell(sheetIdx, n.Addr)
}

func (n *RangeRefNode) eval(ev *evalContext) FormulaValue {
	sheetIdx, err := ev.resolveSheet(n.HasSheet, n.Sheet)
	if err != nil {
		return fvError(ErrRef)
	}
	return FormulaValue{Kind: FVRange, RangeSheet: sheetIdx, RangeAddr: n.Range}
}

func (n *NameRefNode) eval(ev *evalContext) FormulaValue {
	if ev.book == nil {
		return fvError(ErrName)
	}
	ref, ok := ev.book.GetNamedRange(n.Name)
	if !ok {
		return fvError(ErrName)
	}
	ast, err := ParseFormula(ref)
	if err != nil {
		return fvError(ErrName)
	}
	if ev.depth > maxEvalDepth {
		return fvError(ErrRef)
	}
	sub := &evalContext{book: ev.book, sheet: ev.sheet, cell: ev.cell, depth: ev.depth + 1}
	return ast.eval(sub)
}

func (ev *evalContext) resolveSheet(has bool, name string) (int, error) {
	if !has {
		return ev.sheet, nil
	}
	idx, ok := ev.book.SheetIndex(name)
	if !ok {
		return 0, NewOpErrorf(ErrInvalidReference, "unknown sheet %q", name)
	}
	return idx, nil
}

func (ev *evalContext) readCell(sheetIdx int, addr CellAddress) FormulaValue {
	ws, ok := ev.book.WorksheetByIndex(sheetIdx)
	if !ok {
		return fvError(ErrRef)
	}
	v := ws.GetCell(addr)
	return valueToFormulaValue(v)
}

func valueToFormulaValue(v Value) FormulaValue {
	switch v.Kind {
	case KindEmpty:
		return fvEmpty
	case KindNumber:
		return fvNumber(v.Num)
	case KindBoolean:
		return fvBool(v.Bool)
	case KindString:
		return fvString(v.Str.Text())
	case KindError:
		return fvError(v.Err)
	case KindFormula:
		return valueToFormulaValue(v.Formula.CachedValue())
	default:
		return fvEmpty
	}
}

func (n *UnaryOpNode) eval(ev *evalContext) FormulaValue {
	operand := scalarize(n.Operand.eval(ev), ev)
	if operand.Kind == FVError {
		return operand
	}
	switch n.Op {
	case OpUnaryPlus:
		num, errk, ok := toNumber(operand)
		if !ok {
			return fvError(errk)
		}
		return fvNumber(num)
	case OpUnaryMinus:
		num, errk, ok := toNumber(operand)
		if !ok {
			return fvError(errk)
		}
		return fvNumber(-num)
	default: // OpPercent
		num, errk, ok := toNumber(operand)
		if !ok {
			return fvError(errk)
		}
		return fvNumber(num / 100)
	}
}

func (n *BinaryOpNode) eval(ev *evalContext) FormulaValue {
	l := scalarize(n.Left.eval(ev), ev)
	if l.Kind == FVError {
		return l
	}
	r := scalarize(n.Right.eval(ev), ev)
	if r.Kind == FVError {
		return r
	}
	switch n.Op {
	case OpConcat:
		return fvString(toDisplayString(l) + toDisplayString(r))
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return fvBool(compareOp(n.Op, l, r))
	default:
		ln, errk, ok := toNumber(l)
		if !ok {
			return fvError(errk)
		}
		rn, errk, ok := toNumber(r)
		if !ok {
			return fvError(errk)
		}
		switch n.Op {
		case OpAdd:
			return fvNumber(ln + rn)
		case OpSub:
			return fvNumber(ln - rn)
		case OpMul:
			return fvNumber(ln * rn)
		case OpDiv:
			if rn == 0 {
				return fvError(ErrDiv0)
			}
			return fvNumber(ln / rn)
		case OpPow:
			return fvNumber(math.Pow(ln, rn))
		}
	}
	return fvError(ErrValue)
}

func (n *FunctionNode) eval(ev *evalContext) FormulaValue {
	fn, ok := LookupFunction(n.Name)
	if !ok {
		return fvError(ErrName)
	}
	if len(n.Args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(n.Args) > fn.MaxArgs) {
		return fvError(ErrValue)
	}
	args := make([]FormulaValue, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.eval(ev)
		if !fn.RawArgs && args[i].Kind == FVError {
			return args[i]
		}
	}
	return fn.Call(ev, args)
}

func (n *ArrayNode) eval(ev *evalContext) FormulaValue {
	rows := make([][]FormulaValue, len(n.Rows))
	for i, row := range n.Rows {
		vals := make([]FormulaValue, len(row))
		for j, c := range row {
			vals[j] = scalarize(c.eval(ev), ev)
		}
		rows[i] = vals
	}
	return FormulaValue{Kind: FVArray, Array: rows}
}

// scalarize collapses a Range in scalar context via Excel's pre-365
// implicit-intersection rule: it returns #VALUE! unless the range
// intersects the current row/column, in which case it returns that one
// cell. A range on a sheet other than the formula's own reduces only
// when it is a single cell. Non-range values pass through unchanged.
func scalarize(v FormulaValue, ev *evalContext) FormulaValue {
	if v.Kind != FVRange {
		return v
	}
	r := v.RangeAddr
	if v.RangeSheet != ev.sheet {
		if r.IsSingleCell() {
			return ev.readCell(v.RangeSheet, r.Start)
		}
		return fvError(ErrValue)
	}
	if r.Start.Row == r.End.Row {
		if ev.cell.Col >= r.Start.Col && ev.cell.Col <= r.End.Col {
			return ev.readCell(v.RangeSheet, CellAddress{Row: r.Start.Row, Col: ev.cell.Col})
		}
	}
	if r.Start.Col == r.End.Col {
		if ev.cell.Row >= r.Start.Row && ev.cell.Row <= r.End.Row {
			return ev.readCell(v.RangeSheet, CellAddress{Row: ev.cell.Row, Col: r.Start.Col})
		}
	}
	if r.IsSingleCell() {
		return ev.readCell(v.RangeSheet, r.Start)
	}
	return fvError(ErrValue)
}

// toNumber coerces a scalar FormulaValue to a number: Boolean -> 0/1,
// String -> number if it parses exactly (no surrounding whitespace),
// Empty -> 0.
func toNumber(v FormulaValue) (float64, CellErrorKind, bool) {
	switch v.Kind {
	case FVNumber:
		return v.Num, 0, true
	case FVBoolean:
		if v.Bool {
			return 1, 0, true
		}
		return 0, 0, true
	case FVEmpty:
		return 0, 0, true
	case FVString:
		if strings.TrimSpace(v.Str) != v.Str || v.Str == "" {
			return 0, ErrValue, false
		}
		n, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, ErrValue, false
		}
		return n, 0, true
	case FVError:
		return 0, v.Err, false
	default:
		return 0, ErrValue, false
	}
}

// toDisplayString coerces a scalar to its concatenation string form.
func toDisplayString(v FormulaValue) string {
	switch v.Kind {
	case FVString:
		return v.Str
	case FVNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case FVBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case FVError:
		return v.Err.String()
	default:
		return ""
	}
}

// typeRank orders types for cross-type comparison: Number < String <
// Boolean.
func typeRank(v FormulaValue) int {
	switch v.Kind {
	case FVNumber, FVEmpty:
		return 0
	case FVString:
		return 1
	case FVBoolean:
		return 2
	default:
		return 3
	}
}

func compareOp(op BinOp, l, r FormulaValue) bool {
	c := compareValues(l, r)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	default: // OpGe
		return c >= 0
	}
}

// compareValues implements Excel's cross-type ordering: Number < String
// < Boolean across types; within Number and String the natural
// (case-insensitive for strings) order applies.
func compareValues(l, r FormulaValue) int {
	lr, rr := typeRank(l), typeRank(r)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}
	switch l.Kind {
	case FVNumber, FVEmpty:
		ln, rn := l.Num, r.Num
		if l.Kind == FVEmpty {
			ln = 0
		}
		if r.Kind == FVEmpty {
			rn = 0
		}
		switch {
		case ln < rn:
			return -1
		case ln > rn:
			return 1
		default:
			return 0
		}
	case FVString:
		ls, rs := foldCase(l.Str), foldCase(r.Str)
		return strings.Compare(ls, rs)
	case FVBoolean:
		if l.Bool == r.Bool {
			return 0
		}
		if !l.Bool {
			return -1
		}
		return 1
	default:
		return 0
	}
}
