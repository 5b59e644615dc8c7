package parser

import (
	"fmt"
	"strings"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary       → literal | typed_literal | column_ref | func_call | paren_expr
//	              | case_expr | cast_expr | exists_expr | array_expr
//	literal       → NUMBER | STRING | TRUE | FALSE | NULL | PARAM
//	typed_literal → identifier STRING            -- DATE '2024-01-01', INTERVAL '1 day'
//	column_ref    → identifier ("." identifier)* ["." "*"]
//	func_call     → name "(" [DISTINCT|ALL] [args | "*"] [ORDER BY order_list] ")"
//	                [WITHIN GROUP "(" ORDER BY order_list ")"]
//	                [FILTER "(" WHERE expr ")"] [OVER window_spec]

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	pos := p.token.Pos
	info := NodeInfo{Pos: pos}

	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{NodeInfo: info, Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{NodeInfo: info, Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_PARAM:
		lit := &Literal{NodeInfo: info, Type: LiteralParam, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{NodeInfo: info, Type: LiteralBool, Value: "true"}

	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{NodeInfo: info, Type: LiteralBool, Value: "false"}

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{NodeInfo: info, Type: LiteralNull, Value: "null"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		p.nextToken()
		return p.parseCastBody(pos)

	case TOKEN_EXISTS:
		return p.parseExistsExpr(false)

	case TOKEN_LEFT, TOKEN_RIGHT, TOKEN_ALL:
		// left(s, n), right(s, n), x > ALL (SELECT ...)
		if p.checkPeek(TOKEN_LPAREN) {
			name := strings.ToLower(p.token.Literal)
			p.nextToken()
			return p.parseFuncCall([]string{name}, pos)
		}

	case TOKEN_IDENT:
		return p.parseIdentifierExpr()

	case TOKEN_LPAREN:
		return p.parseParenExpr()

	case TOKEN_LBRACKET:
		return p.parseArrayElems(pos)

	case TOKEN_STAR:
		p.nextToken()
		return &StarExpr{NodeInfo: info}

	case TOKEN_ILLEGAL:
		p.addError(p.illegalMessage())
		return nil
	}

	p.addError(fmt.Sprintf(ErrExpectedExpression, p.token))
	return nil
}

// illegalMessage describes an ILLEGAL token. The lexer stores its own
// message in the literal for unterminated strings and identifiers.
func (p *Parser) illegalMessage() string {
	switch p.token.Literal {
	case ErrUnterminatedString, ErrUnterminatedIdent:
		return p.token.Literal
	}
	return fmt.Sprintf("unexpected character %q", p.token.Literal)
}

// parseIdentifierExpr parses an identifier which could be a column ref,
// typed literal or function call.
func (p *Parser) parseIdentifierExpr() Expr {
	pos := p.token.Pos
	name := p.token.Literal
	lower := strings.ToLower(name)

	// Typed literal: DATE '2024-01-01', TIMESTAMP '...', INTERVAL '1 month'
	if p.checkPeek(TOKEN_STRING) {
		p.nextToken()
		lit := &TypedLiteral{NodeInfo: NodeInfo{Pos: pos}, TypeName: strings.ToUpper(name), Value: p.token.Literal}
		p.nextToken()
		if lower == "interval" && p.check(TOKEN_IDENT) && intervalUnits[strings.ToLower(p.token.Literal)] {
			lit.Value += " " + p.token.Literal
			p.nextToken()
		}
		return lit
	}

	// ARRAY[...] and ARRAY(SELECT ...)
	if lower == "array" && p.checkPeek(TOKEN_LBRACKET) {
		p.nextToken()
		return p.parseArrayElems(pos)
	}
	if lower == "array" && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.nextToken()
		arr := &ArrayExpr{NodeInfo: NodeInfo{Pos: pos}, Query: p.parseSubStatement()}
		p.expect(TOKEN_RPAREN)
		return arr
	}

	// TRY_CAST(x AS t)
	if (lower == "try_cast" || lower == "safe_cast") && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		return p.parseCastBody(pos)
	}

	parts := []string{name}
	p.nextToken()

	for p.check(TOKEN_DOT) {
		p.nextToken()
		if p.match(TOKEN_STAR) {
			return &ColumnRef{NodeInfo: NodeInfo{Pos: pos}, Parts: parts, Star: true}
		}
		parts = append(parts, p.parseIdent("identifier after '.'"))
		if p.failed() {
			return nil
		}
	}

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(parts, pos)
	}

	return &ColumnRef{NodeInfo: NodeInfo{Pos: pos}, Parts: parts}
}

// intervalUnits are the unit words accepted after INTERVAL '<n>'.
var intervalUnits = map[string]bool{
	"year": true, "years": true, "month": true, "months": true,
	"week": true, "weeks": true, "day": true, "days": true,
	"hour": true, "hours": true, "minute": true, "minutes": true,
	"second": true, "seconds": true, "quarter": true,
}

// parseFuncCall parses a function call. The current token is "(".
func (p *Parser) parseFuncCall(name []string, pos Position) Expr {
	fn := &FuncCall{NodeInfo: NodeInfo{Pos: pos}, Name: name}
	p.expect(TOKEN_LPAREN)

	switch strings.ToLower(name[len(name)-1]) {
	case "extract":
		p.parseExtractArgs(fn)
	case "position":
		p.parsePositionArgs(fn)
	case "substring", "substr", "trim", "overlay":
		p.parseKeywordArgs(fn)
	default:
		p.parseStandardArgs(fn)
	}

	p.expect(TOKEN_RPAREN)
	if p.failed() {
		return nil
	}

	p.parseFuncSuffix(fn)
	return fn
}

// parseStandardArgs parses [DISTINCT|ALL] (* | args) [ORDER BY ...].
func (p *Parser) parseStandardArgs(fn *FuncCall) {
	if p.check(TOKEN_STAR) {
		fn.Star = true
		p.nextToken()
		return
	}
	if p.check(TOKEN_RPAREN) {
		return
	}

	if p.match(TOKEN_DISTINCT) {
		fn.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	for !p.failed() {
		if p.startsSubStatement() {
			sub := &SubqueryExpr{NodeInfo: NodeInfo{Pos: p.token.Pos}}
			sub.Query = p.parseSubStatement()
			fn.Args = append(fn.Args, sub)
		} else {
			fn.Args = append(fn.Args, p.parseNamedArg())
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		fn.OrderBy = p.parseOrderByList()
	}
}

// parseNamedArg parses an argument, skipping a "name =>" or "name :=" prefix.
func (p *Parser) parseNamedArg() Expr {
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_EQ) && p.checkPeek2(TOKEN_GT) {
		p.nextToken()
		p.nextToken()
		p.nextToken()
	}
	return p.parseExpression()
}

// parseExtractArgs parses EXTRACT(field FROM expr).
func (p *Parser) parseExtractArgs(fn *FuncCall) {
	field := &Literal{NodeInfo: NodeInfo{Pos: p.token.Pos}, Type: LiteralString, Value: p.token.Literal}
	if !p.check(TOKEN_IDENT) && !p.check(TOKEN_STRING) {
		p.addError(fmt.Sprintf("expected field name in EXTRACT, got %s", p.token))
		return
	}
	p.nextToken()
	if p.match(TOKEN_COMMA) || p.expect(TOKEN_FROM) {
		fn.Args = []Expr{field, p.parseExpression()}
	}
}

// parsePositionArgs parses POSITION(substring IN string) or POSITION(a, b).
func (p *Parser) parsePositionArgs(fn *FuncCall) {
	needle := p.parseExpressionWithPrecedence(PrecedenceAddition)
	if p.match(TOKEN_IN) || p.expect(TOKEN_COMMA) {
		fn.Args = []Expr{needle, p.parseExpression()}
	}
}

// parseKeywordArgs parses the SQL-standard keyword argument forms of
// SUBSTRING(s FROM a FOR b), TRIM([BOTH|LEADING|TRAILING] [c] FROM s) and
// OVERLAY(s PLACING r FROM a FOR b), as well as their comma forms.
func (p *Parser) parseKeywordArgs(fn *FuncCall) {
	if p.checkWord("both") || p.checkWord("leading") || p.checkWord("trailing") {
		p.nextToken()
	}
	if p.match(TOKEN_FROM) {
		fn.Args = append(fn.Args, p.parseExpression())
		return
	}

	for !p.failed() {
		fn.Args = append(fn.Args, p.parseExpression())
		if p.match(TOKEN_COMMA) || p.match(TOKEN_FROM) || p.match(TOKEN_FOR) || p.matchWord("placing") {
			continue
		}
		return
	}
}

// parseFuncSuffix parses WITHIN GROUP, FILTER and OVER after a call.
func (p *Parser) parseFuncSuffix(fn *FuncCall) {
	if p.checkWord("within") && p.checkPeek(TOKEN_GROUP) {
		p.nextToken()
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		p.expect(TOKEN_ORDER)
		p.expect(TOKEN_BY)
		fn.WithinGroup = p.parseOrderByList()
		p.expect(TOKEN_RPAREN)
	}

	if p.checkWord("filter") && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		p.expect(TOKEN_WHERE)
		fn.Filter = p.parseExpression()
		p.expect(TOKEN_RPAREN)
	}

	if p.checkWord("over") && (p.checkPeek(TOKEN_LPAREN) || p.checkPeek(TOKEN_IDENT)) {
		p.nextToken()
		fn.Window = p.parseWindowSpec()
	}
}

// parseArrayElems parses "[" [expr ("," expr)*] "]".
func (p *Parser) parseArrayElems(pos Position) Expr {
	arr := &ArrayExpr{NodeInfo: NodeInfo{Pos: pos}}
	p.expect(TOKEN_LBRACKET)
	if !p.check(TOKEN_RBRACKET) {
		arr.Elems = p.parseExpressionList()
	}
	p.expect(TOKEN_RBRACKET)
	return arr
}
