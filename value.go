package sheetcalc

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindBoolean
	KindNumber
	KindString
	KindError
	KindFormula
)

// Value is the tagged cell-value sum type: Empty, Boolean, Number,
// InternedString, Error, or Formula. Only one of Num/Str/Bool/Err/Formula
// is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  *SharedString
	Bool bool
	Err  CellErrorKind

	Formula *FormulaCell
}

// Empty is the zero Value.
var Empty = Value{Kind: KindEmpty}

// NumberValue builds a Number Value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue builds a Boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// ErrorValue builds an Error Value.
func ErrorValue(k CellErrorKind) Value { return Value{Kind: KindError, Err: k} }

// StringValue builds an InternedString Value from an already-interned
// string.
func StringValue(s *SharedString) Value { return Value{Kind: KindString, Str: s} }

// IsEmpty reports whether v is the Empty variant.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// IsFormula reports whether v carries a formula.
func (v Value) IsFormula() bool { return v.Kind == KindFormula }

// FormulaCell carries a formula's original text, its lazily-materialized
// AST, the cached last evaluated value, and a needs_recalc flag (spec
// §3.1 invariant: the cached value is Empty, or a non-formula value).
type FormulaCell struct {
	Text        string
	AST         ASTNode
	Cached      Value
	NeedsRecalc bool
}

// CachedValue returns the formula's last calculated value, or Empty if it
// has never been evaluated.
func (f *FormulaCell) CachedValue() Value {
	if f == nil {
		return Empty
	}
	return f.Cached
}
