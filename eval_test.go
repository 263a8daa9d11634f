package sheetcalc

import "testing"

func setNum(t *testing.T, ws *Worksheet, addr string, n float64) {
	t.Helper()
	a, err := ParseAddress(addr)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", addr, err)
	}
	if err := ws.SetCell(a, NumberValue(n)); err != nil {
		t.Fatalf("SetCell(%q): %v", addr, err)
	}
}

func setFormula(t *testing.T, ws *Worksheet, addr, text string) {
	t.Helper()
	a, err := ParseAddress(addr)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", addr, err)
	}
	if err := ws.SetFormula(a, text); err != nil {
		t.Fatalf("SetFormula(%q, %q): %v", addr, text, err)
	}
}

func calculated(t *testing.T, ws *Worksheet, addr string) Value {
	t.Helper()
	a, err := ParseAddress(addr)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", addr, err)
	}
	return ws.GetCalculatedValue(a)
}

func TestArithmeticRoundTrip(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setNum(t, ws, "A1", 10)
	setNum(t, ws, "A2", 20)
	setFormula(t, ws, "A3", "=A1+A2")
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	v := calculated(t, ws, "A3")
	if v.Kind != KindNumber || v.Num != 30 {
		t.Fatalf("A3 = %+v, want Number(30)", v)
	}
}

func TestRangeAggregation(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	for i := 1; i <= 10; i++ {
		setNum(t, ws, colRow("A", i), float64(i))
	}
	setFormula(t, ws, "B1", "=SUM(A1:A10)")
	setFormula(t, ws, "B2", "=AVERAGE(A1:A10)")
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if v := calculated(t, ws, "B1"); v.Num != 55 {
		t.Fatalf("B1 = %+v, want Number(55)", v)
	}
	if v := calculated(t, ws, "B2"); v.Num != 5.5 {
		t.Fatalf("B2 = %+v, want Number(5.5)", v)
	}
}

func colRow(col string, row int) string {
	return col + itoaTest(row)
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestErrorPropagation(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setNum(t, ws, "A1", 1)
	setNum(t, ws, "A2", 0)
	setFormula(t, ws, "A3", "=A1/A2")
	setFormula(t, ws, "A4", "=A3+1")
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if v := calculated(t, ws, "A3"); v.Kind != KindError || v.Err != ErrDiv0 {
		t.Fatalf("A3 = %+v, want Error(#DIV/0!)", v)
	}
	if v := calculated(t, ws, "A4"); v.Kind != KindError || v.Err != ErrDiv0 {
		t.Fatalf("A4 = %+v, want Error(#DIV/0!)", v)
	}
}

func TestCycleDetection(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setFormula(t, ws, "A1", "=B1+1")
	setFormula(t, ws, "B1", "=A1+1")
	err := b.Calculate()
	if !IsOpCode(err, ErrCircularReference) {
		t.Fatalf("Calculate() = %v, want CircularReference", err)
	}
	if v := calculated(t, ws, "A1"); v.Kind != KindError || v.Err != ErrRef {
		t.Fatalf("A1 = %+v, want Error(#REF!)", v)
	}
	if v := calculated(t, ws, "B1"); v.Kind != KindError || v.Err != ErrRef {
		t.Fatalf("B1 = %+v, want Error(#REF!)", v)
	}
}

func TestIterativeCalculationConverges(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setNum(t, ws, "A1", 0)
	setFormula(t, ws, "A1", "=(A1+2)/2")
	err := b.CalculateWithOptions(CalcOptions{Iterative: true, MaxIterations: 200, MaxChange: 0.0001})
	if err != nil {
		t.Fatalf("CalculateWithOptions: %v", err)
	}
	v := calculated(t, ws, "A1")
	if v.Kind != KindNumber {
		t.Fatalf("A1 = %+v, want a converged Number", v)
	}
	if diff := v.Num - 2; diff > 0.01 || diff < -0.01 {
		t.Fatalf("A1 = %v, want convergence near 2", v.Num)
	}
}

func TestStringComparisonAndConcat(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	a1, _ := ParseAddress("A1")
	ws.SetCell(a1, StringValue(b.strings.Intern("hello")))
	setFormula(t, ws, "B1", `=A1&" world"`)
	setFormula(t, ws, "B2", `="abc"="ABC"`)
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if v := calculated(t, ws, "B1"); v.Kind != KindString || v.Str.Text() != "hello world" {
		t.Fatalf("B1 = %+v, want String(\"hello world\")", v)
	}
	if v := calculated(t, ws, "B2"); v.Kind != KindBoolean || !v.Bool {
		t.Fatalf("B2 = %+v, want Boolean(true) (case-insensitive compare)", v)
	}
}

func TestVlookupAndMatch(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setNum(t, ws, "A1", 1)
	setNum(t, ws, "A2", 2)
	setNum(t, ws, "A3", 3)
	setNum(t, ws, "B1", 10)
	setNum(t, ws, "B2", 20)
	setNum(t, ws, "B3", 30)
	setFormula(t, ws, "C1", "=VLOOKUP(2,A1:B3,2,FALSE)")
	setFormula(t, ws, "C2", "=MATCH(3,A1:A3,0)")
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if v := calculated(t, ws, "C1"); v.Num != 20 {
		t.Fatalf("C1 = %+v, want Number(20)", v)
	}
	if v := calculated(t, ws, "C2"); v.Num != 3 {
		t.Fatalf("C2 = %+v, want Number(3)", v)
	}
}

func TestUnknownFunctionYieldsNameError(t *testing.T) {
	b := New()
	ws, _ := b.Worksheet(0)
	setFormula(t, ws, "A1", "=NOPE(1)")
	if err := b.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if v := calculated(t, ws, "A1"); v.Kind != KindError || v.Err != ErrName {
		t.Fatalf("A1 = %+v, want Error(#NAME?)", v)
	}
}
