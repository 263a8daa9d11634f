package sheetcalc

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// FuncSpec describes a builtin function's arity and evaluation
// behavior. MaxArgs of -1 means unbounded.
type FuncSpec struct {
	MinArgs  int
	MaxArgs  int
	Volatile bool
	// RawArgs opts a function out of the default error-short-circuit
	// behavior, so it can inspect an Error argument directly (ISERROR,
	// ISNA).
	RawArgs bool
	Call    func(ev *evalContext, args []FormulaValue) FormulaValue
}

var functionTable map[string]FuncSpec

func init() {
	functionTable = map[string]FuncSpec{
		"SUM":         {MinArgs: 1, MaxArgs: -1, Call: fnAggregate(aggSum)},
		"AVERAGE":     {MinArgs: 1, MaxArgs: -1, Call: fnAggregate(aggAverage)},
		"MIN":         {MinArgs: 1, MaxArgs: -1, Call: fnAggregate(aggMin)},
		"MAX":         {MinArgs: 1, MaxArgs: -1, Call: fnAggregate(aggMax)},
		"COUNT":       {MinArgs: 1, MaxArgs: -1, Call: fnAggregate(aggCount)},
		"IF":          {MinArgs: 2, MaxArgs: 3, Call: fnIf},
		"AND":         {MinArgs: 1, MaxArgs: -1, Call: fnAnd},
		"OR":          {MinArgs: 1, MaxArgs: -1, Call: fnOr},
		"NOT":         {MinArgs: 1, MaxArgs: 1, Call: fnNot},
		"LEN":         {MinArgs: 1, MaxArgs: 1, Call: fnLen},
		"LEFT":        {MinArgs: 1, MaxArgs: 2, Call: fnLeft},
		"RIGHT":       {MinArgs: 1, MaxArgs: 2, Call: fnRight},
		"MID":         {MinArgs: 3, MaxArgs: 3, Call: fnMid},
		"LOWER":       {MinArgs: 1, MaxArgs: 1, Call: fnLower},
		"UPPER":       {MinArgs: 1, MaxArgs: 1, Call: fnUpper},
		"TRIM":        {MinArgs: 1, MaxArgs: 1, Call: fnTrim},
		"CONCAT":      {MinArgs: 1, MaxArgs: -1, Call: fnConcat},
		"CONCATENATE": {MinArgs: 1, MaxArgs: -1, Call: fnConcat},
		"DATE":        {MinArgs: 3, MaxArgs: 3, Call: fnDate},
		"YEAR":        {MinArgs: 1, MaxArgs: 1, Call: fnYear},
		"MONTH":       {MinArgs: 1, MaxArgs: 1, Call: fnMonth},
		"DAY":         {MinArgs: 1, MaxArgs: 1, Call: fnDay},
		"NOW":         {MinArgs: 0, MaxArgs: 0, Volatile: true, Call: fnNow},
		"TODAY":       {MinArgs: 0, MaxArgs: 0, Volatile: true, Call: fnToday},
		"INDEX":       {MinArgs: 2, MaxArgs: 3, Call: fnIndex},
		"MATCH":       {MinArgs: 2, MaxArgs: 3, Call: fnMatch},
		"VLOOKUP":     {MinArgs: 3, MaxArgs: 4, Call: fnVlookup},
		"ISBLANK":     {MinArgs: 1, MaxArgs: 1, Call: fnIsBlank},
		"ISNUMBER":    {MinArgs: 1, MaxArgs: 1, Call: fnIsNumber},
		"ISTEXT":      {MinArgs: 1, MaxArgs: 1, Call: fnIsText},
		"ISERROR":     {MinArgs: 1, MaxArgs: 1, RawArgs: true, Call: fnIsError},
		"ISNA":        {MinArgs: 1, MaxArgs: 1, RawArgs: true, Call: fnIsNA},
		"NA":          {MinArgs: 0, MaxArgs: 0, Call: fnNA},
		"RAND":        {MinArgs: 0, MaxArgs: 0, Volatile: true, Call: fnRand},
		"RANDBETWEEN": {MinArgs: 2, MaxArgs: 2, Volatile: true, Call: fnRandBetween},
	}
}

// LookupFunction returns the spec for a (already-uppercased) function
// name.
func LookupFunction(name string) (FuncSpec, bool) {
	fn, ok := functionTable[strings.ToUpper(name)]
	return fn, ok
}

// formulaIsVolatile reports whether ast calls a volatile function
// anywhere in its tree (NOW, TODAY, RAND, RANDBETWEEN), used to seed
// the dependency graph's volatile set on set_formula.
func formulaIsVolatile(ast ASTNode) bool {
	switch n := ast.(type) {
	case *FunctionNode:
		if fn, ok := LookupFunction(n.Name); ok && fn.Volatile {
			return true
		}
		for _, a := range n.Args {
			if formulaIsVolatile(a) {
				return true
			}
		}
		return false
	case *BinaryOpNode:
		return formulaIsVolatile(n.Left) || formulaIsVolatile(n.Right)
	case *UnaryOpNode:
		return formulaIsVolatile(n.Operand)
	case *ArrayNode:
		for _, row := range n.Rows {
			for _, c := range row {
				if formulaIsVolatile(c) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// iterateValues flattens a Range/Array FormulaValue into its leaf
// scalars in row-major order, calling fn for each; non-Range/Array
// values are visited once as themselves. Iteration stops early if fn
// returns false. Used by the aggregate functions, which ignore Empty
// and non-numeric cells.
func iterateValues(ev *evalContext, v FormulaValue, fn func(FormulaValue) bool) {
	switch v.Kind {
	case FVRange:
		v.RangeAddr.Each(func(addr CellAddress) bool {
			return fn(ev.readCell(v.RangeSheet, addr))
		})
	case FVArray:
		for _, row := range v.Array {
			for _, c := range row {
				if !fn(c) {
					return
				}
			}
		}
	default:
		fn(v)
	}
}

func aggSum(vals []float64) float64 {
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s
}

func aggAverage(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return aggSum(vals) / float64(len(vals))
}

func aggMin(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func aggMax(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func aggCount(vals []float64) float64 { return float64(len(vals)) }

// fnAggregate builds a Call for a numeric aggregator by collecting
// every numeric leaf value across all args (ignoring Empty and
// non-numeric leaves), short-circuiting on the first Error leaf
// encountered.
func fnAggregate(reduce func([]float64) float64) func(*evalContext, []FormulaValue) FormulaValue {
	return func(ev *evalContext, args []FormulaValue) FormulaValue {
		var nums []float64
		var propagated FormulaValue
		hasErr := false
		for _, a := range args {
			fromRange := a.Kind == FVRange || a.Kind == FVArray
			iterateValues(ev, a, func(leaf FormulaValue) bool {
				switch leaf.Kind {
				case FVNumber:
					nums = append(nums, leaf.Num)
				case FVError:
					if !hasErr {
						hasErr = true
						propagated = leaf
					}
				case FVBoolean, FVString, FVEmpty:
					// ignored by range aggregation; a scalar Boolean/String
					// literal argument (not from a range) still coerces.
					if leaf.Kind != FVEmpty && !fromRange {
						if n, _, ok := toNumber(leaf); ok {
							nums = append(nums, n)
						}
					}
				}
				return true
			})
		}
		if hasErr {
			return propagated
		}
		return fvNumber(reduce(nums))
	}
}

func fnIf(ev *evalContext, args []FormulaValue) FormulaValue {
	cond := scalarize(args[0], ev)
	if cond.Kind == FVError {
		return cond
	}
	b, errk, ok := toBool(cond)
	if !ok {
		return fvError(errk)
	}
	if b {
		if len(args) < 2 {
			return fvBool(true)
		}
		return scalarize(args[1], ev)
	}
	if len(args) < 3 {
		return fvBool(false)
	}
	return scalarize(args[2], ev)
}

func toBool(v FormulaValue) (bool, CellErrorKind, bool) {
	switch v.Kind {
	case FVBoolean:
		return v.Bool, 0, true
	case FVNumber:
		return v.Num != 0, 0, true
	case FVEmpty:
		return false, 0, true
	case FVError:
		return false, v.Err, false
	default:
		return false, ErrValue, false
	}
}

func fnAnd(ev *evalContext, args []FormulaValue) FormulaValue {
	result := true
	for _, a := range args {
		var errVal FormulaValue
		had := false
		iterateValues(ev, a, func(leaf FormulaValue) bool {
			if leaf.Kind == FVError {
				errVal, had = leaf, true
				return false
			}
			b, _, ok := toBool(leaf)
			if ok && !b {
				result = false
			}
			return true
		})
		if had {
			return errVal
		}
	}
	return fvBool(result)
}

func fnOr(ev *evalContext, args []FormulaValue) FormulaValue {
	result := false
	for _, a := range args {
		var errVal FormulaValue
		had := false
		iterateValues(ev, a, func(leaf FormulaValue) bool {
			if leaf.Kind == FVError {
				errVal, had = leaf, true
				return false
			}
			b, _, ok := toBool(leaf)
			if ok && b {
				result = true
			}
			return true
		})
		if had {
			return errVal
		}
	}
	return fvBool(result)
}

func fnNot(ev *evalContext, args []FormulaValue) FormulaValue {
	v := scalarize(args[0], ev)
	b, errk, ok := toBool(v)
	if !ok {
		return fvError(errk)
	}
	return fvBool(!b)
}

func fnText(ev *evalContext, v FormulaValue) (string, FormulaValue, bool) {
	v = scalarize(v, ev)
	if v.Kind == FVError {
		return "", v, false
	}
	return toDisplayString(v), FormulaValue{}, true
}

func fnLen(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	return fvNumber(float64(len(s)))
}

func fnLeft(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	n := 1
	if len(args) > 1 {
		nv, errk, ok := toNumber(scalarize(args[1], ev))
		if !ok {
			return fvError(errk)
		}
		n = int(nv)
	}
	if n < 0 {
		return fvError(ErrValue)
	}
	if n > len(s) {
		n = len(s)
	}
	return fvString(s[:n])
}

func fnRight(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	n := 1
	if len(args) > 1 {
		nv, errk, ok := toNumber(scalarize(args[1], ev))
		if !ok {
			return fvError(errk)
		}
		n = int(nv)
	}
	if n < 0 {
		return fvError(ErrValue)
	}
	if n > len(s) {
		n = len(s)
	}
	return fvString(s[len(s)-n:])
}

func fnMid(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	startN, errk, ok := toNumber(scalarize(args[1], ev))
	if !ok {
		return fvError(errk)
	}
	lenN, errk, ok := toNumber(scalarize(args[2], ev))
	if !ok {
		return fvError(errk)
	}
	start := int(startN)
	length := int(lenN)
	if start < 1 || length < 0 {
		return fvError(ErrValue)
	}
	if start > len(s) {
		return fvString("")
	}
	end := start - 1 + length
	if end > len(s) {
		end = len(s)
	}
	return fvString(s[start-1 : end])
}

func fnLower(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	return fvString(strings.ToLower(s))
}

func fnUpper(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	return fvString(strings.ToUpper(s))
}

func fnTrim(ev *evalContext, args []FormulaValue) FormulaValue {
	s, errv, ok := fnText(ev, args[0])
	if !ok {
		return errv
	}
	return fvString(strings.Join(strings.Fields(s), " "))
}

func fnConcat(ev *evalContext, args []FormulaValue) FormulaValue {
	var b strings.Builder
	for _, a := range args {
		var errv FormulaValue
		had := false
		iterateValues(ev, a, func(leaf FormulaValue) bool {
			if leaf.Kind == FVError {
				errv, had = leaf, true
				return false
			}
			b.WriteString(toDisplayString(leaf))
			return true
		})
		if had {
			return errv
		}
	}
	return fvString(b.String())
}

// excelEpoch is serial day 0 under the 1900 date system. Dates are
// numbers formatted with a date numFmt; this evaluator represents a
// date as its Excel serial day count.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func serialFromDate(y, m, d int) float64 {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Sub(excelEpoch).Hours() / 24
}

func dateFromSerial(serial float64) time.Time {
	return excelEpoch.Add(time.Duration(serial*24*3600) * time.Second)
}

// DateSerial exposes the Excel serial-date conversion to codec packages
// (sheetcalc/csv's Auto type detection recognizes ISO-8601 dates).
func DateSerial(y, m, d int) float64 { return serialFromDate(y, m, d) }

func fnDate(ev *evalContext, args []FormulaValue) FormulaValue {
	y, errk, ok := toNumber(scalarize(args[0], ev))
	if !ok {
		return fvError(errk)
	}
	m, errk, ok := toNumber(scalarize(args[1], ev))
	if !ok {
		return fvError(errk)
	}
	d, errk, ok := toNumber(scalarize(args[2], ev))
	if !ok {
		return fvError(errk)
	}
	return fvNumber(serialFromDate(int(y), int(m), int(d)))
}

func fnYear(ev *evalContext, args []FormulaValue) FormulaValue {
	n, errk, ok := toNumber(scalarize(args[0], ev))
	if !ok {
		return fvError(errk)
	}
	return fvNumber(float64(dateFromSerial(n).Year()))
}

func fnMonth(ev *evalContext, args []FormulaValue) FormulaValue {
	n, errk, ok := toNumber(scalarize(args[0], ev))
	if !ok {
		return fvError(errk)
	}
	return fvNumber(float64(dateFromSerial(n).Month()))
}

func fnDay(ev *evalContext, args []FormulaValue) FormulaValue {
	n, errk, ok := toNumber(scalarize(args[0], ev))
	if !ok {
		return fvError(errk)
	}
	return fvNumber(float64(dateFromSerial(n).Day()))
}

func fnNow(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvNumber(time.Now().UTC().Sub(excelEpoch).Hours() / 24)
}

func fnToday(ev *evalContext, args []FormulaValue) FormulaValue {
	now := time.Now().UTC()
	return fvNumber(math.Floor(now.Sub(excelEpoch).Hours() / 24))
}

func flattenRows(ev *evalContext, v FormulaValue) [][]FormulaValue {
	switch v.Kind {
	case FVRange:
		r := v.RangeAddr
		rows := make([][]FormulaValue, 0, r.End.Row-r.Start.Row+1)
		for row := r.Start.Row; row <= r.End.Row; row++ {
			cols := make([]FormulaValue, 0, r.End.Col-r.Start.Col+1)
			for col := r.Start.Col; col <= r.End.Col; col++ {
				cols = append(cols, ev.readCell(v.RangeSheet, CellAddress{Row: row, Col: col}))
			}
			rows = append(rows, cols)
		}
		return rows
	case FVArray:
		return v.Array
	default:
		return [][]FormulaValue{{v}}
	}
}

func fnIndex(ev *evalContext, args []FormulaValue) FormulaValue {
	rows := flattenRows(ev, args[0])
	rowN, errk, ok := toNumber(scalarize(args[1], ev))
	if !ok {
		return fvError(errk)
	}
	colN := 1.0
	if len(args) > 2 {
		colN, errk, ok = toNumber(scalarize(args[2], ev))
		if !ok {
			return fvError(errk)
		}
	}
	r := int(rowN)
	c := int(colN)
	if len(rows) == 1 && r == 0 {
		r = 1
	}
	if r < 1 || r > len(rows) {
		return fvError(ErrRef)
	}
	row := rows[r-1]
	if len(row) == 1 && c == 0 {
		c = 1
	}
	if c < 1 || c > len(row) {
		return fvError(ErrRef)
	}
	return row[c-1]
}

func fnMatch(ev *evalContext, args []FormulaValue) FormulaValue {
	target := scalarize(args[0], ev)
	if target.Kind == FVError {
		return target
	}
	rows := flattenRows(ev, args[1])
	var flat []FormulaValue
	for _, row := range rows {
		flat = append(flat, row...)
	}
	matchType := 1.0
	if len(args) > 2 {
		var errk CellErrorKind
		var ok bool
		matchType, errk, ok = toNumber(scalarize(args[2], ev))
		if !ok {
			return fvError(errk)
		}
	}
	switch {
	case matchType == 0:
		for i, v := range flat {
			if compareValues(v, target) == 0 {
				return fvNumber(float64(i + 1))
			}
		}
		return fvError(ErrNA)
	case matchType > 0:
		best := -1
		for i, v := range flat {
			if compareValues(v, target) <= 0 {
				best = i
			} else {
				break
			}
		}
		if best < 0 {
			return fvError(ErrNA)
		}
		return fvNumber(float64(best + 1))
	default:
		best := -1
		for i, v := range flat {
			if compareValues(v, target) >= 0 {
				best = i
			} else {
				break
			}
		}
		if best < 0 {
			return fvError(ErrNA)
		}
		return fvNumber(float64(best + 1))
	}
}

func fnVlookup(ev *evalContext, args []FormulaValue) FormulaValue {
	target := scalarize(args[0], ev)
	if target.Kind == FVError {
		return target
	}
	rows := flattenRows(ev, args[1])
	colN, errk, ok := toNumber(scalarize(args[2], ev))
	if !ok {
		return fvError(errk)
	}
	col := int(colN)
	exact := false
	if len(args) > 3 {
		b, errk, ok := toBool(scalarize(args[3], ev))
		if !ok {
			return fvError(errk)
		}
		exact = !b
	}
	if exact {
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			if compareValues(row[0], target) == 0 {
				if col < 1 || col > len(row) {
					return fvError(ErrRef)
				}
				return row[col-1]
			}
		}
		return fvError(ErrNA)
	}
	best := -1
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if compareValues(row[0], target) <= 0 {
			best = i
		} else {
			break
		}
	}
	if best < 0 {
		return fvError(ErrNA)
	}
	row := rows[best]
	if col < 1 || col > len(row) {
		return fvError(ErrRef)
	}
	return row[col-1]
}

func fnIsBlank(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvBool(scalarize(args[0], ev).Kind == FVEmpty)
}

func fnIsNumber(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvBool(scalarize(args[0], ev).Kind == FVNumber)
}

func fnIsText(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvBool(scalarize(args[0], ev).Kind == FVString)
}

func fnIsError(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvBool(scalarize(args[0], ev).Kind == FVError)
}

func fnIsNA(ev *evalContext, args []FormulaValue) FormulaValue {
	v := scalarize(args[0], ev)
	return fvBool(v.Kind == FVError && v.Err == ErrNA)
}

func fnNA(ev *evalContext, args []FormulaValue) FormulaValue { return fvError(ErrNA) }

func fnRand(ev *evalContext, args []FormulaValue) FormulaValue {
	return fvNumber(rand.Float64())
}

func fnRandBetween(ev *evalContext, args []FormulaValue) FormulaValue {
	lo, errk, ok := toNumber(scalarize(args[0], ev))
	if !ok {
		return fvError(errk)
	}
	hi, errk, ok := toNumber(scalarize(args[1], ev))
	if !ok {
		return fvError(errk)
	}
	if hi < lo {
		return fvError(ErrNum)
	}
	span := int64(hi) - int64(lo) + 1
	return fvNumber(float64(int64(lo) + rand.Int63n(span)))
}
