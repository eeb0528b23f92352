// Package parser builds ASTs from the lexer's token stream by
// recursive descent. One bad statement does not take down the rest of
// the script: the parser resynchronizes at the next ';'.
package parser

import (
	"strconv"
	"strings"

	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/lexer"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

type parser struct {
	toks []lexer.Token
	pos  int
}

// ParseScript parses every ';'-terminated statement in the stream.
// Statements that fail contribute an error instead of an AST node.
func ParseScript(toks []lexer.Token) ([]Statement, []*sqlerr.Error) {
	p := &parser{toks: toks}
	var stmts []Statement
	var errs []*sqlerr.Error

	for !p.atEOF() {
		// Tolerate stray semicolons between statements.
		if p.isPunct(";") {
			p.next()
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			errs = append(errs, err)
			p.resync()
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts, errs
}

// ParseStatement parses exactly one statement from the stream.
func ParseStatement(toks []lexer.Token) (Statement, *sqlerr.Error) {
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// ---- token plumbing ----

func (p *parser) cur() lexer.Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	if n := len(p.toks); n > 0 {
		return p.toks[n-1]
	}
	return lexer.Token{Type: lexer.EOF, Line: 1, Col: 1}
}

func (p *parser) next() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool { return p.cur().Type == lexer.EOF }

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Type == lexer.Keyword && t.Lexeme == kw
}

func (p *parser) isPunct(s string) bool {
	t := p.cur()
	return t.Type == lexer.Punct && t.Lexeme == s
}

func (p *parser) isOperator(ops ...string) bool {
	t := p.cur()
	if t.Type != lexer.Operator {
		return false
	}
	for _, op := range ops {
		if t.Lexeme == op {
			return true
		}
	}
	return false
}

func (p *parser) unexpected(expected ...string) *sqlerr.Error {
	t := p.cur()
	got := t.Lexeme
	if t.Type == lexer.EOF {
		got = "<eof>"
	}
	return sqlerr.New(sqlerr.PhaseParse, sqlerr.KindUnexpectedToken, t.Line, t.Col,
		"expected %s, got %q", strings.Join(expected, " | "), got)
}

func (p *parser) expectKeyword(kw string) (lexer.Token, *sqlerr.Error) {
	if !p.isKeyword(kw) {
		return lexer.Token{}, p.unexpected(kw)
	}
	return p.next(), nil
}

func (p *parser) expectPunct(s string) (lexer.Token, *sqlerr.Error) {
	if !p.isPunct(s) {
		return lexer.Token{}, p.unexpected("'" + s + "'")
	}
	return p.next(), nil
}

func (p *parser) expectIdent() (lexer.Token, *sqlerr.Error) {
	if p.cur().Type != lexer.Ident {
		return lexer.Token{}, p.unexpected("identifier")
	}
	return p.next(), nil
}

// expectSemicolon closes a statement; its absence is its own error
// kind.
func (p *parser) expectSemicolon() *sqlerr.Error {
	if p.isPunct(";") {
		p.next()
		return nil
	}
	t := p.cur()
	got := t.Lexeme
	if t.Type == lexer.EOF {
		got = "<eof>"
	}
	return sqlerr.New(sqlerr.PhaseParse, sqlerr.KindMissingSemicolon, t.Line, t.Col,
		"expected ';', got %q", got)
}

// resync consumes tokens through the next ';' so the following
// statement parses cleanly.
func (p *parser) resync() {
	for !p.atEOF() {
		if p.next().Lexeme == ";" {
			return
		}
	}
}

// ---- statements ----

func (p *parser) parseStatement() (Statement, *sqlerr.Error) {
	t := p.cur()
	if t.Type != lexer.Keyword {
		return nil, p.unexpected("CREATE", "INSERT", "SELECT", "DELETE")
	}
	switch t.Lexeme {
	case "CREATE":
		return p.parseCreateTable()
	case "INSERT":
		return p.parseInsert()
	case "SELECT":
		return p.parseSelect()
	case "DELETE":
		return p.parseDelete()
	default:
		return nil, p.unexpected("CREATE", "INSERT", "SELECT", "DELETE")
	}
}

func (p *parser) parseCreateTable() (Statement, *sqlerr.Error) {
	start := p.next() // CREATE
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}

	var cols []ColumnDef
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}

	return &CreateTableStmt{
		Table:   name.Lexeme,
		Columns: cols,
		Line:    start.Line,
		Col:     start.Col,
	}, nil
}

func (p *parser) parseColumnDef() (ColumnDef, *sqlerr.Error) {
	name, err := p.expectIdent()
	if err != nil {
		return ColumnDef{}, err
	}

	col := ColumnDef{Name: name.Lexeme, Line: name.Line, Col: name.Col}
	switch {
	case p.isKeyword("INT"):
		p.next()
		col.Type = record.ColInt
	case p.isKeyword("BOOLEAN"):
		p.next()
		col.Type = record.ColBool
	case p.isKeyword("VARCHAR"):
		p.next()
		col.Type = record.ColVarchar
		if _, err := p.expectPunct("("); err != nil {
			return ColumnDef{}, err
		}
		t := p.cur()
		if t.Type != lexer.IntLiteral {
			return ColumnDef{}, p.unexpected("integer length")
		}
		p.next()
		n, convErr := strconv.ParseUint(t.Lexeme, 10, 32)
		if convErr != nil || n == 0 || n > record.MaxVarcharLen {
			return ColumnDef{}, sqlerr.New(sqlerr.PhaseParse, sqlerr.KindUnexpectedToken,
				t.Line, t.Col, "invalid VARCHAR length %q", t.Lexeme)
		}
		col.Param = uint32(n)
		if _, err := p.expectPunct(")"); err != nil {
			return ColumnDef{}, err
		}
	default:
		return ColumnDef{}, p.unexpected("INT", "VARCHAR", "BOOLEAN")
	}

	// Optional constraints, in either order.
	for {
		switch {
		case p.isKeyword("NOT"):
			p.next()
			if _, err := p.expectKeyword("NULL"); err != nil {
				return ColumnDef{}, err
			}
			col.NotNull = true
		case p.isKeyword("PRIMARY"):
			p.next()
			if _, err := p.expectKeyword("KEY"); err != nil {
				return ColumnDef{}, err
			}
			col.PrimaryKey = true
			col.NotNull = true // PRIMARY KEY implies NOT NULL
		default:
			return col, nil
		}
	}
}

func (p *parser) parseInsert() (Statement, *sqlerr.Error) {
	start := p.next() // INSERT
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.isPunct("(") {
		p.next()
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col.Lexeme)
			if p.isPunct(",") {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}

	var rows [][]Expr
	for {
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.isPunct(",") {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}

	return &InsertStmt{
		Table:   name.Lexeme,
		Columns: columns,
		Rows:    rows,
		Line:    start.Line,
		Col:     start.Col,
	}, nil
}

func (p *parser) parseSelect() (Statement, *sqlerr.Error) {
	start := p.next() // SELECT

	stmt := &SelectStmt{Line: start.Line, Col: start.Col}
	if p.isOperator("*") {
		p.next()
		stmt.Star = true
	} else {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Exprs = append(stmt.Exprs, e)
			if p.isPunct(",") {
				p.next()
				continue
			}
			break
		}
	}

	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Table = name.Lexeme

	if p.isKeyword("WHERE") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = e
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseDelete() (Statement, *sqlerr.Error) {
	start := p.next() // DELETE
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &DeleteStmt{Table: name.Lexeme, Line: start.Line, Col: start.Col}
	if p.isKeyword("WHERE") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = e
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ---- expressions ----
// Precedence, lowest to highest: OR, AND, NOT, comparison, additive,
// multiplicative, unary minus, primary.

func (p *parser) parseExpr() (Expr, *sqlerr.Error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, *sqlerr.Error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right, Line: op.Line, Col: op.Col}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, *sqlerr.Error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		op := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right, Line: op.Line, Col: op.Col}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, *sqlerr.Error) {
	if p.isKeyword("NOT") {
		op := p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand, Line: op.Line, Col: op.Col}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, *sqlerr.Error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOperator("=", "<>", "!=", "<", "<=", ">", ">=") {
		op := p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Line: op.Line, Col: op.Col}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, *sqlerr.Error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOperator("+", "-") {
		op := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Line: op.Line, Col: op.Col}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, *sqlerr.Error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOperator("*", "/") {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Line: op.Line, Col: op.Col}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, *sqlerr.Error) {
	if p.isOperator("-") {
		op := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold the sign into an integer literal.
		if lit, ok := operand.(*IntLit); ok {
			return &IntLit{Value: -lit.Value, Line: op.Line, Col: op.Col}, nil
		}
		return &UnaryExpr{Op: "-", Operand: operand, Line: op.Line, Col: op.Col}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, *sqlerr.Error) {
	t := p.cur()
	switch t.Type {
	case lexer.IntLiteral:
		p.next()
		v, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil {
			return nil, sqlerr.New(sqlerr.PhaseParse, sqlerr.KindUnexpectedToken,
				t.Line, t.Col, "integer literal out of range: %s", t.Lexeme)
		}
		return &IntLit{Value: v, Line: t.Line, Col: t.Col}, nil

	case lexer.StringLiteral:
		p.next()
		return &StringLit{Value: t.Lexeme, Line: t.Line, Col: t.Col}, nil

	case lexer.Ident:
		p.next()
		return &ColumnRef{Name: t.Lexeme, Line: t.Line, Col: t.Col}, nil

	case lexer.Keyword:
		switch t.Lexeme {
		case "TRUE":
			p.next()
			return &BoolLit{Value: true, Line: t.Line, Col: t.Col}, nil
		case "FALSE":
			p.next()
			return &BoolLit{Value: false, Line: t.Line, Col: t.Col}, nil
		case "NULL":
			p.next()
			return &NullLit{Line: t.Line, Col: t.Col}, nil
		}

	case lexer.Punct:
		if t.Lexeme == "(" {
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.unexpected("literal", "column", "'('")
}
