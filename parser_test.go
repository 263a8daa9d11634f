package sheetcalc

import "testing"

func mustParse(t *testing.T, text string) ASTNode {
	t.Helper()
	ast, err := ParseFormula(text)
	if err != nil {
		t.Fatalf("ParseFormula(%q) failed: %v", text, err)
	}
	return ast
}

func TestParserValidFormulas(t *testing.T) {
	formulas := []string{
		"=1+2",
		"=A1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		`='My Sheet'!A1 + Sheet3!B1`,
		"=SUM(B2:A1)",
		"=-A1^2",
		"=A1%",
		`="a" & "b"`,
		`=IF(A1>0,"pos","non-pos")`,
		"={1,2;3,4}",
		"=1<2",
		"=1<=2",
		"=1<>2",
	}
	for _, f := range formulas {
		if _, err := ParseFormula(f); err != nil {
			t.Errorf("ParseFormula(%q) failed: %v", f, err)
		}
	}
}

func TestParserRejectsImplicitIntersection(t *testing.T) {
	if _, err := ParseFormula("=@A1:A10"); !IsOpCode(err, ErrFormulaParse) {
		t.Fatalf("expected FormulaParse for '@' operator, got %v", err)
	}
}

func TestParserOperatorPrecedence(t *testing.T) {
	ast := mustParse(t, "=1+2*3")
	bin, ok := ast.(*BinaryOpNode)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("expected top-level '+', got %#v", ast)
	}
	rhs, ok := bin.Right.(*BinaryOpNode)
	if !ok || rhs.Op != OpMul {
		t.Fatalf("expected '*' nested under '+', got %#v", bin.Right)
	}
}

func TestParserExponentRightAssociative(t *testing.T) {
	ast := mustParse(t, "=2^3^2")
	bin, ok := ast.(*BinaryOpNode)
	if !ok || bin.Op != OpPow {
		t.Fatalf("expected top-level '^', got %#v", ast)
	}
	if _, ok := bin.Right.(*BinaryOpNode); !ok {
		t.Fatalf("expected right-associative nesting, got %#v", bin.Right)
	}
	if _, ok := bin.Left.(*NumberNode); !ok {
		t.Fatalf("expected a literal on the left of the outer '^', got %#v", bin.Left)
	}
}

func TestParserUnaryBindsTighterThanExponent(t *testing.T) {
	// -2^2 should parse as (-2)^2, not -(2^2).
	ast := mustParse(t, "=-2^2")
	bin, ok := ast.(*BinaryOpNode)
	if !ok || bin.Op != OpPow {
		t.Fatalf("expected top-level '^', got %#v", ast)
	}
	if _, ok := bin.Left.(*UnaryOpNode); !ok {
		t.Fatalf("expected unary minus nested under '^', got %#v", bin.Left)
	}
}

func TestParserRangeAcrossSwappedCorners(t *testing.T) {
	ast := mustParse(t, "=SUM(B2:A1)")
	fn, ok := ast.(*FunctionNode)
	if !ok || fn.Name != "SUM" {
		t.Fatalf("expected SUM call, got %#v", ast)
	}
	rng, ok := fn.Args[0].(*RangeRefNode)
	if !ok {
		t.Fatalf("expected range argument, got %#v", fn.Args[0])
	}
	if rng.Range.Start.Row != 0 || rng.Range.Start.Col != 0 {
		t.Errorf("range not normalized: %+v", rng.Range)
	}
}
