package sheetcalc

import (
	"strconv"
	"unicode/utf8"
)

// CalcMode is the workbook-level automatic/manual recalculation
// setting, mirrored from xl/workbook.xml's <calcPr calcMode>.
type CalcMode uint8

const (
	CalcAutomatic CalcMode = iota
	CalcManual
)

// CalcSettings are the workbook-level calculation settings a round
// trip through XLSX must preserve.
type CalcSettings struct {
	Mode          CalcMode
	Iterative     bool
	MaxIterations int
	MaxChange     float64
}

// DefaultCalcSettings mirrors Excel's own defaults.
var DefaultCalcSettings = CalcSettings{
	Mode:          CalcAutomatic,
	Iterative:     false,
	MaxIterations: DefaultMaxIterations,
	MaxChange:     DefaultMaxChange,
}

// MaxSheetNameLen is the OOXML limit on worksheet name length.
const MaxSheetNameLen = 31

// definedName is one entry in the workbook-scoped name table.
type definedName struct {
	Name      string
	RefersTo  string
	SheetOnly int // -1 for workbook-scoped
}

// Workbook owns an ordered, non-empty sequence of worksheets, the
// shared-string and style pools, the dependency graph, the defined-name
// table, and calculation settings.
type Workbook struct {
	sheets     []*Worksheet
	sheetIndex map[string]int // case-folded name -> index

	strings *StringPool
	styles  *StylePool
	graph   *DependencyGraph

	names map[string]*definedName // case-folded name -> entry

	Calc CalcSettings
}

// New creates a workbook with a single default sheet named "Sheet1",
// present immediately after construction.
func New() *Workbook {
	b := &Workbook{
		sheetIndex: make(map[string]int),
		strings:    NewStringPool(),
		styles:     NewStylePool(),
		graph:      NewDependencyGraph(),
		names:      make(map[string]*definedName),
		Calc:       DefaultCalcSettings,
	}
	if _, err := b.AddSheet("Sheet1"); err != nil {
		panic("sheetcalc: failed to create default sheet: " + err.Error())
	}
	return b
}

// SheetCount returns the number of worksheets.
func (b *Workbook) SheetCount() int { return len(b.sheets) }

// SheetNames returns worksheet names in sheet order.
func (b *Workbook) SheetNames() []string {
	out := make([]string, len(b.sheets))
	for i, s := range b.sheets {
		out[i] = s.Name()
	}
	return out
}

// SheetIndex resolves a sheet name to its index, case-insensitively.
// Sheet names are unique under case-insensitive comparison.
func (b *Workbook) SheetIndex(name string) (int, bool) {
	idx, ok := b.sheetIndex[foldCase(name)]
	return idx, ok
}

// WorksheetByIndex returns the worksheet at a 0-based index.
func (b *Workbook) WorksheetByIndex(idx int) (*Worksheet, bool) {
	if idx < 0 || idx >= len(b.sheets) {
		return nil, false
	}
	return b.sheets[idx], true
}

// Worksheet resolves either an integer index or a sheet name to a
// worksheet.
func (b *Workbook) Worksheet(indexOrName any) (*Worksheet, error) {
	switch v := indexOrName.(type) {
	case int:
		ws, ok := b.WorksheetByIndex(v)
		if !ok {
			return nil, NewOpErrorf(ErrOutOfBounds, "sheet index %d out of range", v)
		}
		return ws, nil
	case string:
		idx, ok := b.SheetIndex(v)
		if !ok {
			return nil, NewOpErrorf(ErrInvalidArgument, "unknown sheet %q", v)
		}
		return b.sheets[idx], nil
	default:
		return nil, NewOpErrorf(ErrInvalidArgument, "worksheet: expected int or string, got %T", v)
	}
}

// AddSheet appends a new, empty worksheet. If name is empty, a unique
// "SheetN" name is generated. Fails with InvalidArgument if name is
// over 31 characters or already in use case-insensitively.
func (b *Workbook) AddSheet(name string) (int, error) {
	if name == "" {
		for n := len(b.sheets) + 1; ; n++ {
			candidate := "Sheet" + strconv.Itoa(n)
			if _, exists := b.sheetIndex[foldCase(candidate)]; !exists {
				name = candidate
				break
			}
		}
	}
	if utf8.RuneCountInString(name) > MaxSheetNameLen {
		return 0, NewOpErrorf(ErrInvalidArgument, "sheet name %q exceeds %d characters", name, MaxSheetNameLen)
	}
	key := foldCase(name)
	if _, exists := b.sheetIndex[key]; exists {
		return 0, NewOpErrorf(ErrInvalidArgument, "sheet %q already exists", name)
	}
	idx := len(b.sheets)
	ws := newWorksheet(b, idx, name)
	b.sheets = append(b.sheets, ws)
	b.sheetIndex[key] = idx
	return idx, nil
}

// RemoveSheet deletes the worksheet at index, failing if it is the only
// remaining sheet (a workbook always has at least one worksheet) or
// the index is out of range. Remaining sheets'
// indices shift down to stay contiguous; the dependency graph drops the
// removed sheet's edges.
func (b *Workbook) RemoveSheet(index int) error {
	if index < 0 || index >= len(b.sheets) {
		return NewOpErrorf(ErrOutOfBounds, "sheet index %d out of range", index)
	}
	if len(b.sheets) == 1 {
		return NewOpErrorf(ErrInvalidArgument, "cannot remove the only worksheet")
	}
	b.graph.RemoveSheet(index)
	b.sheets = append(b.sheets[:index], b.sheets[index+1:]...)
	b.sheetIndex = make(map[string]int, len(b.sheets))
	for i, s := range b.sheets {
		s.index = i
		b.sheetIndex[foldCase(s.Name())] = i
	}
	return nil
}

// RenameSheet renames the worksheet at index, failing with
// InvalidArgument if the new name is already taken case-insensitively.
func (b *Workbook) RenameSheet(index int, newName string) error {
	if index < 0 || index >= len(b.sheets) {
		return NewOpErrorf(ErrOutOfBounds, "sheet index %d out of range", index)
	}
	if utf8.RuneCountInString(newName) > MaxSheetNameLen {
		return NewOpErrorf(ErrInvalidArgument, "sheet name %q exceeds %d characters", newName, MaxSheetNameLen)
	}
	key := foldCase(newName)
	if existing, exists := b.sheetIndex[key]; exists && existing != index {
		return NewOpErrorf(ErrInvalidArgument, "sheet %q already exists", newName)
	}
	delete(b.sheetIndex, foldCase(b.sheets[index].name))
	b.sheets[index].name = newName
	b.sheetIndex[key] = index
	return nil
}

// DefineName registers a workbook-scoped named range or formula alias.
func (b *Workbook) DefineName(name, refersTo string) error {
	if _, err := ParseFormula(refersTo); err != nil {
		return NewOpError(ErrFormulaParse, err)
	}
	b.names[foldCase(name)] = &definedName{Name: name, RefersTo: refersTo, SheetOnly: -1}
	return nil
}

// GetNamedRange returns the formula text a defined name refers to.
func (b *Workbook) GetNamedRange(name string) (string, bool) {
	n, ok := b.names[foldCase(name)]
	if !ok {
		return "", false
	}
	return n.RefersTo, true
}

// DefinedNames returns every defined name in the workbook, in no
// particular order (the XLSX writer sorts before emitting).
func (b *Workbook) DefinedNames() []string {
	out := make([]string, 0, len(b.names))
	for _, n := range b.names {
		out = append(out, n.Name)
	}
	return out
}
