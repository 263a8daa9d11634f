package csv

import (
	"strings"
	"testing"

	"github.com/sheetcalc/sheetcalc"
)

func TestReadAutoTyping(t *testing.T) {
	book, err := Read(strings.NewReader(`42,3.14,true,hello,"7"`), DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	want := []struct {
		col  uint32
		kind sheetcalc.ValueKind
	}{
		{0, sheetcalc.KindNumber},
		{1, sheetcalc.KindNumber},
		{2, sheetcalc.KindBoolean},
		{3, sheetcalc.KindString},
		{4, sheetcalc.KindString},
	}
	for _, w := range want {
		v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: w.col})
		if v.Kind != w.kind {
			t.Errorf("col %d: Kind = %v, want %v (value %+v)", w.col, v.Kind, w.kind, v)
		}
	}
	v7 := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: 4})
	if v7.Str.Text() != "7" {
		t.Errorf("col 4 = %q, want \"7\"", v7.Str.Text())
	}
}

func TestReadAllStrings(t *testing.T) {
	opts := DefaultReadOptions()
	opts.Typing = AllStrings
	book, err := Read(strings.NewReader("42,true"), opts)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	for col := uint32(0); col < 2; col++ {
		v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: col})
		if v.Kind != sheetcalc.KindString {
			t.Errorf("col %d: Kind = %v, want String under AllStrings", col, v.Kind)
		}
	}
}

func TestReadISODateAuto(t *testing.T) {
	book, err := Read(strings.NewReader("2024-01-15"), DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: 0})
	if v.Kind != sheetcalc.KindNumber {
		t.Fatalf("Kind = %v, want Number (date serial)", v.Kind)
	}
	if want := sheetcalc.DateSerial(2024, 1, 15); v.Num != want {
		t.Errorf("serial = %v, want %v", v.Num, want)
	}
}

func TestReadHasHeaderSkipsFirstRecord(t *testing.T) {
	opts := DefaultReadOptions()
	opts.HasHeader = true
	book, err := Read(strings.NewReader("a,b\n1,2\n"), opts)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	if v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: 0}); v.Num != 1 {
		t.Fatalf("row 0 col 0 = %+v, want Number(1), header should be skipped", v)
	}
}

func TestReadQuotedFieldWithEmbeddedDelimiterAndNewline(t *testing.T) {
	book, err := Read(strings.NewReader(`"a,b",1` + "\n" + `"line1` + "\n" + `line2",2`), DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	if v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: 0}); v.Str.Text() != "a,b" {
		t.Errorf("row0 col0 = %q, want %q", v.Str.Text(), "a,b")
	}
	if v := ws.GetCell(sheetcalc.CellAddress{Row: 1, Col: 0}); v.Str.Text() != "line1\nline2" {
		t.Errorf("row1 col0 = %q, want embedded newline preserved", v.Str.Text())
	}
}

func TestSniffDelimiter(t *testing.T) {
	book, err := Read(strings.NewReader("1;2;3"), ReadOptions{Typing: Auto, Quote: '"'})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	if v := ws.GetCell(sheetcalc.CellAddress{Row: 0, Col: 2}); v.Num != 3 {
		t.Fatalf("col 2 = %+v, want Number(3) (semicolon delimiter auto-detected)", v)
	}
}

func TestWriteQuotingStyles(t *testing.T) {
	book := sheetcalc.New()
	ws, _ := book.Worksheet(0)
	ws.SetCell(sheetcalc.CellAddress{Row: 0, Col: 0}, sheetcalc.StringValue(book.Strings().Intern("a,b")))
	ws.SetCell(sheetcalc.CellAddress{Row: 0, Col: 1}, sheetcalc.NumberValue(5))

	var buf strings.Builder
	opts := DefaultWriteOptions()
	if err := Write(&buf, ws, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != `"a,b",5`+"\n" {
		t.Errorf("QuoteNecessary output = %q", got)
	}

	buf.Reset()
	opts.Quoting = QuoteAlways
	if err := Write(&buf, ws, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != `"a,b","5"`+"\n" {
		t.Errorf("QuoteAlways output = %q", got)
	}
}

func TestRoundTripNumbersAndBooleans(t *testing.T) {
	const text = "1,true,hello\n2,false,world\n"
	book, err := Read(strings.NewReader(text), DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ws, _ := book.Worksheet(0)
	var buf strings.Builder
	if err := Write(&buf, ws, DefaultWriteOptions()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != text {
		t.Errorf("round trip = %q, want %q", got, text)
	}
}
