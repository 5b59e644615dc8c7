package parser

import (
	"fmt"
	"strings"
)

// Special expression parsing: CASE, CAST, EXISTS, parenthesized expressions, subqueries.
//
// Grammar:
//
//	case_expr     → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	cast_expr     → CAST "(" expr AS type_name ")"
//	exists_expr   → [NOT] EXISTS "(" statement ")"
//	paren_expr    → "(" expr ("," expr)* ")" | "(" statement ")"
//	type_name     → identifier [identifier...] ["(" number ["," number] ")"] ("[" "]")*

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	caseExpr := &CaseExpr{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	p.expect(TOKEN_CASE)

	// Simple CASE: CASE expr WHEN ...
	if !p.check(TOKEN_WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) && !p.failed() {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}
	if len(caseExpr.Whens) == 0 && !p.failed() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, TOKEN_WHEN))
	}

	if p.match(TOKEN_ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(TOKEN_END)
	return caseExpr
}

// parseCastBody parses "(" expr AS type_name ")" after CAST or TRY_CAST.
func (p *Parser) parseCastBody(pos Position) Expr {
	p.expect(TOKEN_LPAREN)

	cast := &CastExpr{NodeInfo: NodeInfo{Pos: pos}}
	cast.Expr = p.parseExpression()
	p.expect(TOKEN_AS)
	cast.TypeName = p.parseTypeName()
	p.expect(TOKEN_RPAREN)

	return cast
}

// typeContinuations are words that extend a multi-word type name.
var typeContinuations = map[string]bool{
	"precision": true, // double precision
	"varying":   true, // character varying
}

// parseTypeName parses a type name with optional parameters and array suffix.
func (p *Parser) parseTypeName() string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected type name, got %s", p.token))
		return ""
	}

	var b strings.Builder
	b.WriteString(p.token.Literal)
	p.nextToken()

	for p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
		p.nextToken()
		b.WriteString("." + p.token.Literal)
		p.nextToken()
	}

	for p.check(TOKEN_IDENT) && typeContinuations[strings.ToLower(p.token.Literal)] {
		b.WriteString(" " + p.token.Literal)
		p.nextToken()
	}

	// Type parameters like VARCHAR(255) or DECIMAL(10, 2)
	if p.match(TOKEN_LPAREN) {
		b.WriteString("(")
		for !p.failed() {
			if p.check(TOKEN_NUMBER) || p.check(TOKEN_IDENT) {
				b.WriteString(p.token.Literal)
				p.nextToken()
			} else {
				p.addError(fmt.Sprintf("expected type parameter, got %s", p.token))
				break
			}
			if !p.match(TOKEN_COMMA) {
				break
			}
			b.WriteString(", ")
		}
		p.expect(TOKEN_RPAREN)
		b.WriteString(")")
	}

	// WITH / WITHOUT TIME ZONE
	if (p.check(TOKEN_WITH) || p.checkWord("without")) && isWord(p.peek, "time") && isWord(p.peek2, "zone") {
		b.WriteString(" " + strings.ToUpper(p.token.Literal) + " TIME ZONE")
		p.nextToken()
		p.nextToken()
		p.nextToken()
	}

	for p.check(TOKEN_LBRACKET) && p.checkPeek(TOKEN_RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}

	return b.String()
}

// parseParenExpr parses a parenthesized expression, row constructor or subquery.
func (p *Parser) parseParenExpr() Expr {
	pos := p.token.Pos
	p.expect(TOKEN_LPAREN)

	if p.startsSubStatement() {
		subquery := &SubqueryExpr{NodeInfo: NodeInfo{Pos: pos}}
		subquery.Query = p.parseSubStatement()
		p.expect(TOKEN_RPAREN)
		return subquery
	}

	paren := &ParenExpr{NodeInfo: NodeInfo{Pos: pos}}
	paren.Exprs = p.parseExpressionList()
	p.expect(TOKEN_RPAREN)
	return paren
}

// parseExistsExpr parses an EXISTS expression. The current token is EXISTS.
func (p *Parser) parseExistsExpr(not bool) Expr {
	exists := &ExistsExpr{NodeInfo: NodeInfo{Pos: p.token.Pos}, Not: not}
	p.expect(TOKEN_EXISTS)

	p.expect(TOKEN_LPAREN)
	if p.failed() {
		return nil
	}
	exists.Query = p.parseSubStatement()
	p.expect(TOKEN_RPAREN)

	return exists
}
