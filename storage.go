package sheetcalc

import "sort"

// cellRecord is what a non-empty cell stores: its value and a reference
// (by index) into the workbook's style pool.
type cellRecord struct {
	Value   Value
	StyleID uint32
}

// rowData holds the non-empty cells of one row, keyed by column. sorted
// caches ascending column order and is invalidated (set to nil) whenever
// a new column key is added, so insertion stays O(1) amortized and
// iteration order is only paid for when something actually reads it —
// needed because the XLSX writer emits cells in ascending column
// order.
type rowData struct {
	cells  map[uint16]*cellRecord
	sorted []uint16
}

func newRowData() *rowData {
	return &rowData{cells: make(map[uint16]*cellRecord)}
}

func (r *rowData) columns() []uint16 {
	if r.sorted == nil {
		r.sorted = make([]uint16, 0, len(r.cells))
		for c := range r.cells {
			r.sorted = append(r.sorted, c)
		}
		sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i] < r.sorted[j] })
	}
	return r.sorted
}

func (r *rowData) set(col uint16, rec *cellRecord) {
	if _, exists := r.cells[col]; !exists {
		r.sorted = nil
	}
	r.cells[col] = rec
}

func (r *rowData) delete(col uint16) {
	if _, exists := r.cells[col]; exists {
		delete(r.cells, col)
		r.sorted = nil
	}
}

// Storage is a row-indexed ordered map of cells per worksheet (spec
// §3.1/§4.3 "Sparse storage"): rows is an ordered map from row to
// row-data, each row-data an ordered map from column to {value,
// style_id}. A cell whose value is Empty is stored only when it carries
// a non-default style; the "non-empty" rows, columns, counts and used
// range reported below include such styled blank cells.
type Storage struct {
	rows       map[uint32]*rowData
	sortedRows []uint32
}

// NewStorage creates empty sparse cell storage.
func NewStorage() *Storage {
	return &Storage{rows: make(map[uint32]*rowData)}
}

func (s *Storage) rowKeys() []uint32 {
	if s.sortedRows == nil {
		s.sortedRows = make([]uint32, 0, len(s.rows))
		for r := range s.rows {
			s.sortedRows = append(s.sortedRows, r)
		}
		sort.Slice(s.sortedRows, func(i, j int) bool { return s.sortedRows[i] < s.sortedRows[j] })
	}
	return s.sortedRows
}

// Get returns the cell record at addr, or nil if the cell is absent
// (empty).
func (s *Storage) Get(addr CellAddress) *cellRecord {
	row, ok := s.rows[addr.Row]
	if !ok {
		return nil
	}
	return row.cells[uint16(addr.Col)]
}

// Set stores or updates the cell at addr. Storing Empty with the default
// style (id 0) removes the cell entirely; an Empty value with any other
// style is stored, so storage holds Empty entries for styled blank
// cells.
func (s *Storage) Set(addr CellAddress, rec cellRecord) {
	if rec.Value.IsEmpty() && rec.StyleID == 0 {
		s.Delete(addr)
		return
	}
	row, ok := s.rows[addr.Row]
	if !ok {
		row = newRowData()
		s.rows[addr.Row] = row
		s.sortedRows = nil
	}
	r := rec
	row.set(uint16(addr.Col), &r)
}

// Delete removes the cell at addr, if present. A row left with no cells
// is dropped so that row count tracks non-empty rows only.
func (s *Storage) Delete(addr CellAddress) {
	row, ok := s.rows[addr.Row]
	if !ok {
		return
	}
	row.delete(uint16(addr.Col))
	if len(row.cells) == 0 {
		delete(s.rows, addr.Row)
		s.sortedRows = nil
	}
}

// Rows returns the row indices that contain at least one non-empty cell,
// in ascending order.
func (s *Storage) Rows() []uint32 { return s.rowKeys() }

// ColumnsInRow returns the column indices with a non-empty cell in the
// given row, in ascending order.
func (s *Storage) ColumnsInRow(row uint32) []uint16 {
	r, ok := s.rows[row]
	if !ok {
		return nil
	}
	return r.columns()
}

// UsedRange returns the minimum bounding rectangle over all non-empty
// cells, or ok=false on an empty sheet.
func (s *Storage) UsedRange() (r RangeAddress, ok bool) {
	rows := s.rowKeys()
	if len(rows) == 0 {
		return RangeAddress{}, false
	}
	minRow, maxRow := rows[0], rows[len(rows)-1]
	minCol, maxCol := uint32(MaxCol+1), uint32(0)
	for _, row := range rows {
		cols := s.rows[row].columns()
		if len(cols) == 0 {
			continue
		}
		if c := uint32(cols[0]); c < minCol {
			minCol = c
		}
		if c := uint32(cols[len(cols)-1]); c > maxCol {
			maxCol = c
		}
	}
	if minCol > maxCol {
		return RangeAddress{}, false
	}
	return RangeAddress{
		Start: CellAddress{Row: minRow, Col: minCol},
		End:   CellAddress{Row: maxRow, Col: maxCol},
	}, true
}

// CellCount returns the total number of non-empty cells.
func (s *Storage) CellCount() int {
	n := 0
	for _, row := range s.rows {
		n += len(row.cells)
	}
	return n
}
