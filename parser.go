package sheetcalc

import "strings"

// Parser turns a token stream into an ASTNode, using precedence
// climbing over the levels lowest-to-highest: range, comparison,
// concatenation, additive, multiplicative, exponentiation, unary,
// postfix percent, via a recursive-descent chain: parseComparison ->
// parseConcat -> parseAdditive -> parseMultiplicative ->
// parseExponent -> parseUnary -> parsePostfix -> parsePrimary.
type Parser struct {
	toks []Token
	pos  int
}

// ParseFormula lexes and parses formula text into an ASTNode; a single
// leading '=' is optional and is stripped before lexing.
func ParseFormula(text string) (ASTNode, error) {
	text = strings.TrimPrefix(text, "=")
	lx := NewLexer(text)
	var toks []Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Type == TokEOF {
			break
		}
	}
	p := &Parser{toks: toks}
	node, err := p.parseRangeLevel()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != TokEOF {
		return nil, NewOpErrorf(ErrFormulaParse, "unexpected trailing token %q at %d", p.cur().Text, p.cur().Pos)
	}
	return node, nil
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Type: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// parseRangeLevel handles the lowest-precedence reference operators: the
// ':' range operator between two reference operands. Union (',') and
// intersection (space) inside a reference context
// are not supported as general binary operators by this engine; ranges
// are otherwise formed directly in parsePrimary when a ref token is
// immediately followed by ':'.
func (p *Parser) parseRangeLevel() (ASTNode, error) {
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokOp {
		var op BinOp
		switch p.cur().Text {
		case "=":
			op = OpEq
		case "<>":
			op = OpNe
		case "<":
			op = OpLt
		case "<=":
			op = OpLe
		case ">":
			op = OpGt
		case ">=":
			op = OpGe
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseConcat() (ASTNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokOp && p.cur().Text == "&" {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: OpConcat, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ASTNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokOp && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := OpAdd
		if p.cur().Text == "-" {
			op = OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ASTNode, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokOp && (p.cur().Text == "*" || p.cur().Text == "/") {
		op := OpMul
		if p.cur().Text == "/" {
			op = OpDiv
		}
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseExponent is right-associative.
func (p *Parser) parseExponent() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == TokOp && p.cur().Text == "^" {
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

// parseUnary binds tighter than exponentiation: unary binds tighter
// than ^.
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.cur().Type == TokOp && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := OpUnaryPlus
		if p.cur().Text == "-" {
			op = OpUnaryMinus
		}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TokOp && p.cur().Text == "%" {
		p.advance()
		node = &UnaryOpNode{Op: OpPercent, Operand: node}
	}
	return node, nil
}

func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.cur()
	switch tok.Type {
	case TokNumber:
		p.advance()
		return &NumberNode{Value: tok.Num}, nil
	case TokString:
		p.advance()
		return &StringNode{Value: tok.Str}, nil
	case TokBoolean:
		p.advance()
		return &BooleanNode{Value: tok.Bool}, nil
	case TokErrorLit:
		p.advance()
		return &ErrorNode{Value: tok.Err}, nil
	case TokRef:
		p.advance()
		return p.finishRef(tok.Text)
	case TokAt:
		return nil, NewOpErrorf(ErrFormulaParse, "implicit intersection operator '@' is not supported at %d", tok.Pos)
	case TokIdent:
		p.advance()
		if p.cur().Type == TokLParen {
			return p.finishFunctionCall(tok.Text)
		}
		return &NameRefNode{Name: tok.Text}, nil
	case TokLParen:
		p.advance()
		node, err := p.parseRangeLevel()
		if err != nil {
			return nil, err
		}
		if p.cur().Type != TokRParen {
			return nil, NewOpErrorf(ErrFormulaParse, "expected ')' at %d", p.cur().Pos)
		}
		p.advance()
		return node, nil
	case TokLBrace:
		return p.finishArrayLiteral()
	default:
		return nil, NewOpErrorf(ErrFormulaParse, "unexpected token at %d", tok.Pos)
	}
}

// finishRef parses the reference text of a TokRef token (any sheet
// qualifier, quoted or not, is still embedded and is split off here via
// SheetRef) and, if immediately followed by ':', combines it with a
// second ref to form a range.
func (p *Parser) finishRef(text string) (ASTNode, error) {
	sheetName, rest := SheetRef(text)
	hasSheet := sheetName != "" || strings.Contains(text, "!")

	first, err := ParseAddress(rest)
	firstIsAddr := err == nil

	if p.cur().Type == TokColon {
		p.advance()
		if p.cur().Type != TokRef {
			return nil, NewOpErrorf(ErrFormulaParse, "expected range end at %d", p.cur().Pos)
		}
		endTok := p.advance()
		_, endRest := SheetRef(endTok.Text)
		end, err := ParseAddress(endRest)
		if err != nil {
			return nil, NewOpError(ErrFormulaParse, err)
		}
		if !firstIsAddr {
			return nil, NewOpErrorf(ErrFormulaParse, "invalid range start %q", rest)
		}
		return &RangeRefNode{HasSheet: hasSheet, Sheet: sheetName, Range: normalizeRange(first, end)}, nil
	}

	if firstIsAddr {
		return &CellRefNode{HasSheet: hasSheet, Sheet: sheetName, Addr: first}, nil
	}
	// rest parses as a range already (e.g. defined-name-free "A1:B2" was
	// lexed as a single token in some code paths).
	if r, err := ParseRange(rest); err == nil {
		return &RangeRefNode{HasSheet: hasSheet, Sheet: sheetName, Range: r}, nil
	}
	return nil, NewOpErrorf(ErrFormulaParse, "invalid reference %q", text)
}

func (p *Parser) finishFunctionCall(name string) (ASTNode, error) {
	p.advance() // consume '('
	var args []ASTNode
	if p.cur().Type != TokRParen {
		for {
			arg, err := p.parseRangeLevel()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Type == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().Type != TokRParen {
		return nil, NewOpErrorf(ErrFormulaParse, "expected ')' closing call to %s at %d", name, p.cur().Pos)
	}
	p.advance()
	return &FunctionNode{Name: strings.ToUpper(name), Args: args}, nil
}

func (p *Parser) finishArrayLiteral() (ASTNode, error) {
	p.advance() // consume '{'
	var rows [][]ASTNode
	row := []ASTNode{}
	for {
		elem, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		row = append(row, elem)
		switch p.cur().Type {
		case TokComma:
			p.advance()
			continue
		case TokSemicolon:
			p.advance()
			rows = append(rows, row)
			row = []ASTNode{}
			continue
		case TokRBrace:
			rows = append(rows, row)
			p.advance()
			return &ArrayNode{Rows: rows}, nil
		default:
			return nil, NewOpErrorf(ErrFormulaParse, "unexpected token in array literal at %d", p.cur().Pos)
		}
	}
}
