package xlsx

import (
	"bytes"
	"testing"

	"github.com/sheetcalc/sheetcalc"
)

func addr(row, col uint32) sheetcalc.CellAddress {
	return sheetcalc.CellAddress{Row: row, Col: col}
}

func roundTrip(t *testing.T, book *sheetcalc.Workbook) *sheetcalc.Workbook {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, book); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return out
}

// TestRoundTripCellsAndFormulas checks that save/load preserves literal
// values and formula text, with formulas marked dirty for recalculation
// rather than trusting the cached <v>.
func TestRoundTripCellsAndFormulas(t *testing.T) {
	book := sheetcalc.New()
	ws, _ := book.Worksheet(0)
	ws.SetCell(addr(0, 0), sheetcalc.NumberValue(41))
	ws.SetCell(addr(0, 1), sheetcalc.NumberValue(1))
	if err := ws.SetFormula(addr(0, 2), "=A1+B1"); err != nil {
		t.Fatalf("SetFormula: %v", err)
	}
	ws.SetCell(addr(1, 0), sheetcalc.StringValue(book.Strings().Intern("hello")))
	ws.SetCell(addr(1, 1), sheetcalc.BoolValue(true))
	ws.SetCell(addr(1, 2), sheetcalc.ErrorValue(sheetcalc.ErrDiv0))

	if err := book.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	out := roundTrip(t, book)
	outWs, err := out.Worksheet(0)
	if err != nil {
		t.Fatalf("Worksheet(0): %v", err)
	}

	if v := outWs.GetCell(addr(0, 0)); v.Num != 41 {
		t.Errorf("A1 = %+v, want Number(41)", v)
	}
	c3 := outWs.GetCell(addr(0, 2))
	if !c3.IsFormula() {
		t.Fatalf("C1 = %+v, want a formula cell", c3)
	}
	if c3.Formula.Text != "=A1+B1" {
		t.Errorf("C1 formula text = %q, want %q", c3.Formula.Text, "=A1+B1")
	}
	if !c3.Formula.NeedsRecalc {
		t.Errorf("C1 formula should be marked NeedsRecalc after load, cache must not be trusted")
	}

	if v := outWs.GetCell(addr(1, 0)); v.Str == nil || v.Str.Text() != "hello" {
		t.Errorf("A2 = %+v, want String(hello)", v)
	}
	if v := outWs.GetCell(addr(1, 1)); v.Kind != sheetcalc.KindBoolean || !v.Bool {
		t.Errorf("B2 = %+v, want Boolean(true)", v)
	}
	if v := outWs.GetCell(addr(1, 2)); v.Kind != sheetcalc.KindError || v.Err != sheetcalc.ErrDiv0 {
		t.Errorf("C2 = %+v, want Error(#DIV/0!)", v)
	}

	if err := out.Calculate(); err != nil {
		t.Fatalf("Calculate after load: %v", err)
	}
	if v := outWs.GetCalculatedValue(addr(0, 2)); v.Num != 42 {
		t.Errorf("C1 recalculated = %+v, want Number(42)", v)
	}
}

// TestRoundTripStylesAndDXF covers a conditional-format rule whose DXF
// must survive the styles.xml <dxfs> pool round trip.
func TestRoundTripStylesAndDXF(t *testing.T) {
	book := sheetcalc.New()
	ws, _ := book.Worksheet(0)
	ws.SetCell(addr(0, 0), sheetcalc.NumberValue(5))
	ws.SetCellStyle(addr(0, 0), sheetcalc.Style{
		Font: sheetcalc.Font{Bold: true, Name: "Calibri", Size: 11},
		Fill: sheetcalc.Fill{Kind: sheetcalc.FillSolid, Solid: sheetcalc.Color{Kind: sheetcalc.ColorRGB, RGB: "FF0000"}},
	})
	ws.SetConditionalFormat(sheetcalc.ConditionalFormat{
		Range: sheetcalc.RangeAddress{Start: addr(0, 0), End: addr(9, 0)},
		Type:  sheetcalc.CFCellIs, Operator: sheetcalc.CFGreaterThan, Formula1: "3",
		DXF: sheetcalc.DXF{Fill: &sheetcalc.Fill{Kind: sheetcalc.FillSolid, Solid: sheetcalc.Color{Kind: sheetcalc.ColorRGB, RGB: "FFFF00"}}},
	})

	out := roundTrip(t, book)
	outWs, _ := out.Worksheet(0)

	style := outWs.CellStyle(addr(0, 0))
	if !style.Font.Bold || style.Font.Name != "Calibri" {
		t.Errorf("A1 style font = %+v, want bold Calibri", style.Font)
	}
	if style.Fill.Kind != sheetcalc.FillSolid || style.Fill.Solid.RGB != "FF0000" {
		t.Errorf("A1 style fill = %+v, want solid FF0000", style.Fill)
	}

	rules := outWs.ConditionalFormats()
	if len(rules) != 1 {
		t.Fatalf("ConditionalFormats() = %d rules, want 1", len(rules))
	}
	rule := rules[0]
	if rule.Type != sheetcalc.CFCellIs || rule.Operator != sheetcalc.CFGreaterThan || rule.Formula1 != "3" {
		t.Errorf("rule = %+v, want cellIs greaterThan 3", rule)
	}
	if rule.DXF.Fill == nil || rule.DXF.Fill.Solid.RGB != "FFFF00" {
		t.Errorf("rule DXF fill = %+v, want solid FFFF00", rule.DXF.Fill)
	}
}

// TestRoundTripMergesCommentsAndNames covers merged regions, a cell
// comment and a workbook-scoped defined name.
func TestRoundTripMergesCommentsAndNames(t *testing.T) {
	book := sheetcalc.New()
	ws, _ := book.Worksheet(0)
	ws.SetCell(addr(0, 0), sheetcalc.NumberValue(1))
	region := sheetcalc.RangeAddress{Start: addr(0, 0), End: addr(0, 2)}
	if err := ws.Merge(region); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	ws.SetComment(sheetcalc.Comment{Addr: addr(0, 0), Author: "reviewer", Text: "check this"})
	if err := book.DefineName("Total", "Sheet1!$A$1"); err != nil {
		t.Fatalf("DefineName: %v", err)
	}

	out := roundTrip(t, book)
	outWs, _ := out.Worksheet(0)

	merges := outWs.MergedRegions()
	if len(merges) != 1 || merges[0].Range != region {
		t.Errorf("MergedRegions() = %+v, want [%v]", merges, region)
	}

	comments := outWs.Comments()
	c, ok := comments[addr(0, 0)]
	if !ok {
		t.Fatalf("no comment at A1")
	}
	if c.Author != "reviewer" || c.Text != "check this" {
		t.Errorf("comment = %+v, want {reviewer, check this}", c)
	}

	refersTo, ok := out.GetNamedRange("Total")
	if !ok || refersTo != "Sheet1!$A$1" {
		t.Errorf("GetNamedRange(Total) = %q, %v, want %q, true", refersTo, ok, "Sheet1!$A$1")
	}
}

// TestRoundTripMultipleSheetsPreservesNames checks the first sheet is
// renamed in place rather than leaving a stray default "Sheet1" plus the
// file's first sheet duplicated.
func TestRoundTripMultipleSheetsPreservesNames(t *testing.T) {
	book := sheetcalc.New()
	if err := book.RenameSheet(0, "Summary"); err != nil {
		t.Fatalf("RenameSheet: %v", err)
	}
	if _, err := book.AddSheet("Detail"); err != nil {
		t.Fatalf("AddSheet: %v", err)
	}

	out := roundTrip(t, book)
	if out.SheetCount() != 2 {
		t.Fatalf("SheetCount() = %d, want 2", out.SheetCount())
	}
	names := out.SheetNames()
	if names[0] != "Summary" || names[1] != "Detail" {
		t.Errorf("SheetNames() = %v, want [Summary Detail]", names)
	}
}

func TestEscapeXHexRoundTrip(t *testing.T) {
	cases := []string{"plain text", "tab\tchar", "control\x01char", "_x005F_literal", ""}
	for _, s := range cases {
		esc := escapeXHex(s)
		got := unescapeXHex(esc)
		if got != s {
			t.Errorf("escapeXHex/unescapeXHex(%q) round trip = %q", s, got)
		}
	}
}

func TestCoalesceColsMergesIdenticalRuns(t *testing.T) {
	book := sheetcalc.New()
	ws, _ := book.Worksheet(0)
	ws.SetColumnWidth(0, 10)
	ws.SetColumnWidth(1, 10)
	ws.SetColumnWidth(2, 20)
	ws.SetColumnWidth(4, 10)

	cols := coalesceCols(ws)
	if len(cols) != 3 {
		t.Fatalf("coalesceCols() = %d runs, want 3: %+v", len(cols), cols)
	}
	if cols[0].Min != 1 || cols[0].Max != 2 || cols[0].Width != 10 {
		t.Errorf("run 0 = %+v, want min=1 max=2 width=10", cols[0])
	}
	if cols[1].Min != 3 || cols[1].Max != 3 || cols[1].Width != 20 {
		t.Errorf("run 1 = %+v, want min=3 max=3 width=20", cols[1])
	}
	if cols[2].Min != 5 || cols[2].Max != 5 || cols[2].Width != 10 {
		t.Errorf("run 2 = %+v, want min=5 max=5 width=10", cols[2])
	}
}
