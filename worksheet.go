package sheetcalc

import "sort"

// RowMeta is per-row metadata. A default sentinel (HeightSet == false)
// means "unchanged from workbook default".
type RowMeta struct {
	Height    float64
	HeightSet bool
	Hidden    bool
	Outline   uint8
}

// ColMeta is per-column metadata.
type ColMeta struct {
	Width    float64
	WidthSet bool
	Hidden   bool
	Outline  uint8
	StyleID  uint32
}

// Comment is a cell comment.
type Comment struct {
	Addr   CellAddress
	Author string
	Text   string
}

// CFOperator is a cellIs conditional-formatting operator.
type CFOperator string

const (
	CFBetween           CFOperator = "between"
	CFNotBetween        CFOperator = "notBetween"
	CFEqual             CFOperator = "equal"
	CFNotEqual          CFOperator = "notEqual"
	CFGreaterThan       CFOperator = "greaterThan"
	CFLessThan          CFOperator = "lessThan"
	CFGreaterThanOrEq   CFOperator = "greaterThanOrEqual"
	CFLessThanOrEqual   CFOperator = "lessThanOrEqual"
)

// CFType is the conditional-formatting rule kind. The engine evaluates
// no rule kind. The XLSX writer gives a DXF only to CFCellIs and
// CFExpression rules; for every kind an XLSX round trip keeps the range,
// type, operator, priority and formulas, and drops kind-specific child
// elements (colorScale, dataBar or iconSet contents).
type CFType string

const (
	CFCellIs           CFType = "cellIs"
	CFExpression        CFType = "expression"
	CFColorScale        CFType = "colorScale"
	CFDataBar           CFType = "dataBar"
	CFIconSet           CFType = "iconSet"
	CFTop10             CFType = "top10"
	CFDuplicateValues   CFType = "duplicateValues"
	CFContainsText      CFType = "containsText"
)

// ConditionalFormat is one priority-ordered conditional-formatting rule
// over a range, with a DXF applied when the rule fires.
type ConditionalFormat struct {
	Range    RangeAddress
	Priority int
	Type     CFType
	Operator CFOperator
	Formula1 string
	Formula2 string
	DXF      DXF
	// Opaque is a free-form attribute map for rule types this engine does
	// not interpret (colorScale, dataBar, iconSet, top10,
	// duplicateValues, containsText). The XLSX codec neither fills it on
	// read nor writes it.
	Opaque map[string]string
}

// DataValidationType is the value-kind a data-validation rule checks.
type DataValidationType string

const (
	DVList       DataValidationType = "list"
	DVWhole      DataValidationType = "whole"
	DVDecimal    DataValidationType = "decimal"
	DVDate       DataValidationType = "date"
	DVTime       DataValidationType = "time"
	DVTextLength DataValidationType = "textLength"
	DVCustom     DataValidationType = "custom"
)

// DataValidation is a cell-range input-validation rule.
type DataValidation struct {
	Range           RangeAddress
	Type            DataValidationType
	Operator        CFOperator
	Formula1        string
	Formula2        string
	AllowBlank      bool
	ShowErrorAlert  bool
	ErrorTitle      string
	ErrorMessage    string
}

// MergedRegion is a rectangle spanning >= 2 cells; its anchor is its
// top-left cell.
type MergedRegion struct {
	Range RangeAddress
}

// Anchor returns the merged region's top-left cell.
func (m MergedRegion) Anchor() CellAddress { return m.Range.Start }

// Worksheet owns a name, the sparse cell grid, ordered merged regions,
// row/column metadata, conditional-formatting rules, data-validation
// rules, and cell comments.
type Worksheet struct {
	name    string
	book    *Workbook
	index   int
	storage *Storage

	merges []MergedRegion
	rowMeta map[uint32]RowMeta
	colMeta map[uint32]ColMeta

	condFormats []ConditionalFormat
	dataValids  []DataValidation
	comments    map[CellAddress]Comment
}

func newWorksheet(book *Workbook, index int, name string) *Worksheet {
	return &Worksheet{
		name:    name,
		book:    book,
		index:   index,
		storage: NewStorage(),
		rowMeta: make(map[uint32]RowMeta),
		colMeta: make(map[uint32]ColMeta),
		comments: make(map[CellAddress]Comment),
	}
}

// Name returns the worksheet's name.
func (w *Worksheet) Name() string { return w.name }

// Index returns the worksheet's 0-based position in the workbook.
func (w *Worksheet) Index() int { return w.index }

// Book returns the owning Workbook, for codec use.
func (w *Worksheet) Book() *Workbook { return w.book }

// SetCell stores a non-formula value at addr. Storing a formula's text
// should go through SetFormula instead; SetCell on a cell that
// previously held a formula clears that formula's dependency edges
// first.
func (w *Worksheet) SetCell(addr CellAddress, value Value) error {
	if addr.Row > MaxRow || addr.Col > MaxCol {
		return NewOpErrorf(ErrOutOfBounds, "address %s out of bounds", FormatAddress(addr))
	}
	if value.IsFormula() {
		return NewOpErrorf(ErrInvalidArgument, "SetCell: use SetFormula for formula values")
	}
	w.clearFormulaAt(addr)
	existing := w.storage.Get(addr)
	styleID := uint32(0)
	if existing != nil {
		styleID = existing.StyleID
	}
	w.storage.Set(addr, cellRecord{Value: value, StyleID: styleID})
	if w.book != nil {
		w.book.graph.MarkDirtyDependents(w.cellKey(addr))
	}
	return nil
}

// SetFormula installs formula text at addr. The AST is parsed
// immediately so that InvalidReference/FormulaParse surfaces as an
// operation error at install time.
func (w *Worksheet) SetFormula(addr CellAddress, text string) error {
	if addr.Row > MaxRow || addr.Col > MaxCol {
		return NewOpErrorf(ErrOutOfBounds, "address %s out of bounds", FormatAddress(addr))
	}
	ast, err := ParseFormula(text)
	if err != nil {
		return NewOpError(ErrFormulaParse, err)
	}
	w.clearFormulaAt(addr)
	existing := w.storage.Get(addr)
	styleID := uint32(0)
	if existing != nil {
		styleID = existing.StyleID
	}
	fc := &FormulaCell{Text: text, AST: ast, NeedsRecalc: true}
	w.storage.Set(addr, cellRecord{Value: Value{Kind: KindFormula, Formula: fc}, StyleID: styleID})
	if w.book != nil {
		key := w.cellKey(addr)
		w.book.graph.SetPrecedents(key, collectRefs(ast, w.book, w.index))
		w.book.graph.MarkVolatile(key, formulaIsVolatile(ast))
		w.book.graph.MarkDirty(key)
	}
	return nil
}

func (w *Worksheet) clearFormulaAt(addr CellAddress) {
	existing := w.storage.Get(addr)
	if existing == nil || existing.Value.Kind != KindFormula {
		return
	}
	if w.book != nil {
		w.book.graph.ClearPrecedents(w.cellKey(addr))
	}
}

func (w *Worksheet) cellKey(addr CellAddress) CellKey {
	return CellKey{Sheet: w.index, Row: addr.Row, Col: addr.Col}
}

// GetCell returns the raw value stored at addr: Empty for absent cells,
// or the formula's cached value rendered through Value{Kind: KindFormula}.
func (w *Worksheet) GetCell(addr CellAddress) Value {
	rec := w.storage.Get(addr)
	if rec == nil {
		return Empty
	}
	return rec.Value
}

// GetCalculatedValue returns a formula cell's cached value, or the raw
// value for a non-formula cell.
func (w *Worksheet) GetCalculatedValue(addr CellAddress) Value {
	v := w.GetCell(addr)
	if v.Kind == KindFormula {
		return v.Formula.CachedValue()
	}
	return v
}

// UsedRange returns the minimum bounding rectangle over all non-empty
// cells.
func (w *Worksheet) UsedRange() (RangeAddress, bool) { return w.storage.UsedRange() }

// Merge adds a merged region, failing with OverlapConflict
// (ErrInvalidArgument) if it intersects an existing one.
func (w *Worksheet) Merge(r RangeAddress) error {
	if r.IsSingleCell() {
		return NewOpErrorf(ErrInvalidArgument, "merge region %s must span at least two cells", FormatRange(r))
	}
	for _, m := range w.merges {
		if m.Range.Overlaps(r) {
			return NewOpErrorf(ErrInvalidArgument, "merge region %s overlaps existing region %s", FormatRange(r), FormatRange(m.Range))
		}
	}
	w.merges = append(w.merges, MergedRegion{Range: r})
	return nil
}

// Unmerge removes the merged region exactly equal to r, if present.
func (w *Worksheet) Unmerge(r RangeAddress) error {
	for i, m := range w.merges {
		if m.Range == r {
			w.merges = append(w.merges[:i], w.merges[i+1:]...)
			return nil
		}
	}
	return NewOpErrorf(ErrInvalidArgument, "no merged region %s", FormatRange(r))
}

// MergedRegions returns the merged regions in the order they were
// added: merged regions are listed in the order stored.
func (w *Worksheet) MergedRegions() []MergedRegion { return w.merges }

// SetRowHeight upserts a row's height.
func (w *Worksheet) SetRowHeight(row uint32, height float64) {
	m := w.rowMeta[row]
	m.Height, m.HeightSet = height, true
	w.rowMeta[row] = m
}

// SetColumnWidth upserts a column's width.
func (w *Worksheet) SetColumnWidth(col uint32, width float64) {
	m := w.colMeta[col]
	m.Width, m.WidthSet = width, true
	w.colMeta[col] = m
}

// HideRow marks a row hidden.
func (w *Worksheet) HideRow(row uint32, hidden bool) {
	m := w.rowMeta[row]
	m.Hidden = hidden
	w.rowMeta[row] = m
}

// HideColumn marks a column hidden.
func (w *Worksheet) HideColumn(col uint32, hidden bool) {
	m := w.colMeta[col]
	m.Hidden = hidden
	w.colMeta[col] = m
}

// RowMetaOf returns the metadata for row, and whether any was ever set.
func (w *Worksheet) RowMetaOf(row uint32) (RowMeta, bool) {
	m, ok := w.rowMeta[row]
	return m, ok
}

// ColMetaOf returns the metadata for col, and whether any was ever set.
func (w *Worksheet) ColMetaOf(col uint32) (ColMeta, bool) {
	m, ok := w.colMeta[col]
	return m, ok
}

// SortedRowMeta returns rows with metadata, in ascending order.
func (w *Worksheet) SortedRowMeta() []uint32 { return sortedKeysU32(w.rowMeta) }

// SortedColMeta returns columns with metadata, in ascending order.
func (w *Worksheet) SortedColMeta() []uint32 { return sortedKeysU32Col(w.colMeta) }

func sortedKeysU32(m map[uint32]RowMeta) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysU32Col(m map[uint32]ColMeta) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetCellStyle assigns a pooled style to addr.
func (w *Worksheet) SetCellStyle(addr CellAddress, style Style) {
	id := w.book.styles.GetOrInsert(style)
	rec := w.storage.Get(addr)
	if rec == nil {
		w.storage.Set(addr, cellRecord{Value: Empty, StyleID: id})
		return
	}
	rec.StyleID = id
}

// CellStyle returns the resolved Style for addr (DefaultStyle if none
// was ever assigned).
func (w *Worksheet) CellStyle(addr CellAddress) Style {
	rec := w.storage.Get(addr)
	if rec == nil {
		return DefaultStyle
	}
	return w.book.styles.Get(rec.StyleID)
}

// CellStyleID returns the raw style-pool index for addr (0 if none was
// ever assigned), for codec use: the XLSX writer's cellXfs index is the
// same pool order.
func (w *Worksheet) CellStyleID(addr CellAddress) uint32 {
	rec := w.storage.Get(addr)
	if rec == nil {
		return 0
	}
	return rec.StyleID
}

// SetConditionalFormat appends a conditional-formatting rule, preserving
// priority order as the order rules are added.
func (w *Worksheet) SetConditionalFormat(rule ConditionalFormat) {
	w.condFormats = append(w.condFormats, rule)
}

// ConditionalFormats returns the worksheet's conditional-formatting rules
// in priority order.
func (w *Worksheet) ConditionalFormats() []ConditionalFormat { return w.condFormats }

// SetDataValidation appends a data-validation rule.
func (w *Worksheet) SetDataValidation(rule DataValidation) {
	w.dataValids = append(w.dataValids, rule)
}

// DataValidations returns the worksheet's data-validation rules.
func (w *Worksheet) DataValidations() []DataValidation { return w.dataValids }

// SetComment attaches a comment to addr.
func (w *Worksheet) SetComment(c Comment) { w.comments[c.Addr] = c }

// Comments returns all comments, keyed by address.
func (w *Worksheet) Comments() map[CellAddress]Comment { return w.comments }

// CellCount returns the number of non-empty cells.
func (w *Worksheet) CellCount() int { return w.storage.CellCount() }

// Storage exposes the underlying sparse storage for codec use.
func (w *Worksheet) Storage() *Storage { return w.storage }
