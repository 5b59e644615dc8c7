package parser

import "fmt"

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	PrecedenceNone       = 0
//	PrecedenceOr         = 1
//	PrecedenceAnd        = 2
//	PrecedenceNot        = 3
//	PrecedenceComparison = 4  (=, !=, <, >, <=, >=, ~, IS, IN, BETWEEN, LIKE, ILIKE)
//	PrecedenceAddition   = 5  (+, -, ||, ->, ->>)
//	PrecedenceMultiply   = 6  (*, /, %, ^)
//	PrecedenceUnary      = 7  (-, +)
//
// Postfix forms (::type, [index], AT TIME ZONE, COLLATE) bind tighter than
// any infix operator and are handled in parsePostfix.

// Precedence levels for infix operators.
const (
	PrecedenceNone       = 0
	PrecedenceOr         = 1
	PrecedenceAnd        = 2
	PrecedenceNot        = 3
	PrecedenceComparison = 4
	PrecedenceAddition   = 5
	PrecedenceMultiply   = 6
	PrecedenceUnary      = 7
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec == PrecedenceNone || prec < minPrecedence {
			break
		}

		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case TOKEN_NOT:
		if p.checkPeek(TOKEN_EXISTS) {
			p.nextToken()
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceNot)
		return &UnaryExpr{NodeInfo: NodeInfo{Pos: pos}, Op: TOKEN_NOT, Expr: expr}

	case TOKEN_MINUS, TOKEN_PLUS, TOKEN_TILDE:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceUnary)
		return &UnaryExpr{NodeInfo: NodeInfo{Pos: pos}, Op: op, Expr: expr}

	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or PrecedenceNone.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE, TOKEN_TILDE:
		return PrecedenceComparison
	case TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return PrecedenceComparison
	case TOKEN_NOT:
		// NOT as infix only for NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
			return PrecedenceComparison
		}
		return PrecedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE, TOKEN_ARROW, TOKEN_DARROW:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT, TOKEN_CARET:
		return PrecedenceMultiply
	default:
		return PrecedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return p.parseNegatableInfix(left, true, pos)

	case TOKEN_IS:
		return p.parseIsExpr(left)

	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return p.parseNegatableInfix(left, false, pos)
	}

	// Standard binary operators
	op := p.token
	p.nextToken()

	// Parse right operand with higher precedence (left-associative)
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		return nil
	}

	return &BinaryExpr{NodeInfo: NodeInfo{Pos: pos}, Left: left, Op: op.Type, Right: right}
}

// parseNegatableInfix handles [NOT] IN, [NOT] BETWEEN, [NOT] LIKE, [NOT] ILIKE.
func (p *Parser) parseNegatableInfix(left Expr, not bool, pos Position) Expr {
	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, not, pos)

	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, not, pos)

	case TOKEN_LIKE, TOKEN_ILIKE:
		ilike := p.check(TOKEN_ILIKE)
		p.nextToken()
		return p.parseLikeExpr(left, not, ilike, pos)

	default:
		p.addError("expected IN, BETWEEN, LIKE, or ILIKE after NOT")
		return nil
	}
}

// parseIsExpr parses IS [NOT] NULL / TRUE / FALSE / UNKNOWN / DISTINCT FROM expr.
func (p *Parser) parseIsExpr(left Expr) Expr {
	is := &IsExpr{NodeInfo: NodeInfo{Pos: p.token.Pos}, Expr: left}
	p.nextToken() // consume IS

	is.Not = p.match(TOKEN_NOT)

	switch {
	case p.match(TOKEN_NULL):
		is.Value = "NULL"
	case p.match(TOKEN_TRUE):
		is.Value = "TRUE"
	case p.match(TOKEN_FALSE):
		is.Value = "FALSE"
	case p.matchWord("unknown"):
		is.Value = "UNKNOWN"
	case p.match(TOKEN_DISTINCT):
		p.expect(TOKEN_FROM)
		is.Value = "DISTINCT FROM"
		is.Right = p.parseExpressionWithPrecedence(PrecedenceAddition)
	default:
		p.addError(fmt.Sprintf("expected NULL, TRUE, FALSE or DISTINCT FROM after IS, got %s", p.token))
		return nil
	}
	return is
}

// parseInExpr parses the operand of an IN expression.
func (p *Parser) parseInExpr(left Expr, not bool, pos Position) Expr {
	in := &InExpr{NodeInfo: NodeInfo{Pos: pos}, Expr: left, Not: not}
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}

	if p.startsSubStatement() {
		in.Query = p.parseSubStatement()
	} else {
		in.Values = p.parseExpressionList()
	}

	p.expect(TOKEN_RPAREN)
	return in
}

// parseBetweenExpr parses a BETWEEN expression.
func (p *Parser) parseBetweenExpr(left Expr, not bool, pos Position) Expr {
	between := &BetweenExpr{NodeInfo: NodeInfo{Pos: pos}, Expr: left, Not: not}
	p.matchWord("symmetric")
	// Parse bounds at addition precedence to avoid capturing AND
	between.Low = p.parseExpressionWithPrecedence(PrecedenceAddition)
	p.expect(TOKEN_AND)
	between.High = p.parseExpressionWithPrecedence(PrecedenceAddition)
	return between
}

// parseLikeExpr parses a LIKE/ILIKE expression.
func (p *Parser) parseLikeExpr(left Expr, not, ilike bool, pos Position) Expr {
	like := &LikeExpr{NodeInfo: NodeInfo{Pos: pos}, Expr: left, Not: not, ILike: ilike}
	like.Pattern = p.parseExpressionWithPrecedence(PrecedenceAddition)
	if p.matchWord("escape") {
		like.Escape = p.parseExpressionWithPrecedence(PrecedenceAddition)
	}
	return like
}

// parsePostfix applies postfix operators to a primary expression.
func (p *Parser) parsePostfix(expr Expr) Expr {
	for expr != nil && !p.failed() {
		pos := p.token.Pos
		switch {
		case p.match(TOKEN_DCOLON):
			expr = &CastExpr{NodeInfo: NodeInfo{Pos: pos}, Expr: expr, TypeName: p.parseTypeName()}

		case p.match(TOKEN_LBRACKET):
			idx := &IndexExpr{NodeInfo: NodeInfo{Pos: pos}, Expr: expr}
			if !p.check(TOKEN_RBRACKET) {
				idx.Index = p.parseExpression()
			}
			p.expect(TOKEN_RBRACKET)
			expr = idx

		case p.checkWord("at") && isWord(p.peek, "time") && isWord(p.peek2, "zone"):
			p.nextToken()
			p.nextToken()
			p.nextToken()
			zone := p.parsePrimary()
			expr = &FuncCall{NodeInfo: NodeInfo{Pos: pos}, Name: []string{"timezone"}, Args: []Expr{zone, expr}}

		case p.checkWord("collate") && (p.checkPeek(TOKEN_IDENT) || p.checkPeek(TOKEN_STRING)):
			p.nextToken()
			p.nextToken()

		default:
			return expr
		}
	}
	return expr
}
