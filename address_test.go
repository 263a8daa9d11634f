package sheetcalc

import "testing"

func TestColumnLetterRoundTrip(t *testing.T) {
	cases := []struct {
		col    uint32
		letter string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{701, "ZZ"},
		{702, "AAA"},
		{MaxCol, "XFD"},
	}
	for _, c := range cases {
		if got := ColumnToLetters(c.col); got != c.letter {
			t.Errorf("ColumnToLetters(%d) = %q, want %q", c.col, got, c.letter)
		}
		got, ok := LettersToColumn(c.letter)
		if !ok || got != c.col {
			t.Errorf("LettersToColumn(%q) = %d,%v, want %d,true", c.letter, got, ok, c.col)
		}
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("$B$3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Col != 1 || a.Row != 2 || !a.AbsCol || !a.AbsRow {
		t.Fatalf("unexpected address: %+v", a)
	}
	if got := FormatAddress(a); got != "$B$3" {
		t.Errorf("FormatAddress = %q, want $B$3", got)
	}

	if _, err := ParseAddress("A"); !IsOpCode(err, ErrInvalidReference) {
		t.Errorf("expected InvalidReference for missing row, got %v", err)
	}
	if _, err := ParseAddress("1"); !IsOpCode(err, ErrInvalidReference) {
		t.Errorf("expected InvalidReference for missing column, got %v", err)
	}
	if _, err := ParseAddress("XFE1"); !IsOpCode(err, ErrInvalidReference) {
		t.Errorf("expected InvalidReference for out-of-range column, got %v", err)
	}
}

func TestParseRangeNormalizes(t *testing.T) {
	r, err := ParseRange("B3:A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start.Row != 0 || r.Start.Col != 0 || r.End.Row != 2 || r.End.Col != 1 {
		t.Fatalf("range not normalized: %+v", r)
	}
	if got := FormatRange(r); got != "A1:B3" {
		t.Errorf("FormatRange = %q, want A1:B3", got)
	}
}

func TestSheetRefQuoting(t *testing.T) {
	sheet, rest := SheetRef("'My Sheet'!A1")
	if sheet != "My Sheet" || rest != "A1" {
		t.Fatalf("SheetRef = %q,%q", sheet, rest)
	}
	sheet, rest = SheetRef("'It''s Mine'!B2")
	if sheet != "It's Mine" || rest != "B2" {
		t.Fatalf("SheetRef escaping failed: %q,%q", sheet, rest)
	}
	if got := QuoteSheetName("It's Mine"); got != "'It''s Mine'" {
		t.Errorf("QuoteSheetName = %q", got)
	}
	if got := QuoteSheetName("Sheet1"); got != "Sheet1" {
		t.Errorf("QuoteSheetName should not quote a plain name, got %q", got)
	}
}

func TestRangeContainsAndOverlaps(t *testing.T) {
	r, _ := ParseRange("B2:D4")
	inside, _ := ParseAddress("C3")
	outside, _ := ParseAddress("A1")
	if !r.Contains(inside) {
		t.Errorf("expected %v to contain C3", r)
	}
	if r.Contains(outside) {
		t.Errorf("expected %v not to contain A1", r)
	}
	other, _ := ParseRange("D4:F6")
	if !r.Overlaps(other) {
		t.Errorf("expected ranges to overlap at D4")
	}
	disjoint, _ := ParseRange("F6:G7")
	if r.Overlaps(disjoint) {
		t.Errorf("did not expect ranges to overlap")
	}
}
