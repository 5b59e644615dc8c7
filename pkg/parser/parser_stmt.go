package parser

import (
	"fmt"
	"strings"
)

// Statement parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	cte_list      → cte ("," cte)*
//	cte           → identifier ["(" ident_list ")"] AS [[NOT] MATERIALIZED] "(" statement ")"
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | table "." "*" | expr [[AS] identifier]
//	group_list    → ALL | group_item ("," group_item)*
//	group_item    → expr | GROUPING SETS "(" expr_list ")"
//	order_list    → order_item ("," order_item)*
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]
//	values        → VALUES "(" expr_list ")" ("," "(" expr_list ")")*

// parseStatement parses any statement that may appear at the top level.
func (p *Parser) parseStatement() Statement {
	switch {
	case p.check(TOKEN_WITH), p.check(TOKEN_SELECT), p.check(TOKEN_LPAREN):
		return p.parseSelectStmt()
	case p.check(TOKEN_VALUES):
		return p.parseValues()
	case p.check(TOKEN_IDENT) && writeKinds[strings.ToLower(p.token.Literal)]:
		return p.parseWriteStmt(nil)
	case p.check(TOKEN_IDENT):
		return p.parseCommand()
	default:
		p.addError(fmt.Sprintf("expected statement, got %s", p.token))
		return nil
	}
}

// parseSubStatement parses a statement nested inside parentheses: a CTE
// body, a derived table or a subquery.
func (p *Parser) parseSubStatement() Statement {
	switch {
	case p.check(TOKEN_WITH), p.check(TOKEN_SELECT), p.check(TOKEN_LPAREN):
		return p.parseSelectStmt()
	case p.check(TOKEN_VALUES):
		return p.parseValues()
	case p.isWriteStart():
		return p.parseWriteStmt(nil)
	default:
		p.addError(fmt.Sprintf("expected SELECT, got %s", p.token))
		return nil
	}
}

// startsSubStatement reports whether the token after an opening parenthesis
// begins a nested statement rather than an expression.
func (p *Parser) startsSubStatement() bool {
	return p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) || p.check(TOKEN_VALUES) || p.isWriteStart()
}

// parseSelectStmt parses [WITH ...] select_body. A WITH clause followed by a
// data-modifying statement yields a *WriteStmt.
func (p *Parser) parseSelectStmt() Statement {
	stmt := &SelectStmt{NodeInfo: NodeInfo{Pos: p.token.Pos}}

	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
		if p.failed() {
			return stmt
		}
		if p.isWriteStart() {
			return p.parseWriteStmt(stmt.With)
		}
	}

	stmt.Body = p.parseSelectBody()

	if !p.failed() && p.startsTail() {
		stmt.Tail = &SelectCore{NodeInfo: NodeInfo{Pos: p.token.Pos}}
		p.parseTail(stmt.Tail)
	}
	return stmt
}

// startsTail reports whether an ORDER BY / LIMIT / locking clause follows.
func (p *Parser) startsTail() bool {
	switch p.token.Type {
	case TOKEN_ORDER, TOKEN_LIMIT, TOKEN_OFFSET, TOKEN_FETCH, TOKEN_FOR:
		return true
	}
	return false
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *WithClause {
	with := &WithClause{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	p.expect(TOKEN_WITH)

	if p.match(TOKEN_RECURSIVE) {
		with.Recursive = true
	}

	for !p.failed() {
		with.CTEs = append(with.CTEs, p.parseCTE())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return with
}

// parseCTE parses a single CTE.
func (p *Parser) parseCTE() *CTE {
	cte := &CTE{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	cte.Name = p.parseIdent("CTE name")

	if p.check(TOKEN_LPAREN) {
		cte.Columns = p.parseIdentList("column name")
	}

	p.expect(TOKEN_AS)

	// [NOT] MATERIALIZED
	if p.check(TOKEN_NOT) && isWord(p.peek, "materialized") {
		p.nextToken()
	}
	p.matchWord("materialized")

	p.expect(TOKEN_LPAREN)
	if p.failed() {
		return cte
	}
	if p.check(TOKEN_IDENT) && writeKinds[strings.ToLower(p.token.Literal)] {
		cte.Body = p.parseWriteStmt(nil)
	} else {
		cte.Body = p.parseSubStatement()
	}
	p.expect(TOKEN_RPAREN)

	return cte
}

// parseSelectBody parses a SELECT body with possible set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	body.Left = p.parseSelectTerm()
	if p.failed() {
		return body
	}

	if p.check(TOKEN_UNION) || p.check(TOKEN_INTERSECT) || p.check(TOKEN_EXCEPT) {
		switch p.token.Type {
		case TOKEN_UNION:
			p.nextToken()
			if p.match(TOKEN_ALL) {
				body.Op = SetOpUnionAll
				body.All = true
			} else {
				body.Op = SetOpUnion
				p.match(TOKEN_DISTINCT) // optional
			}
		case TOKEN_INTERSECT:
			p.nextToken()
			body.Op = SetOpIntersect
			body.All = p.match(TOKEN_ALL)
		case TOKEN_EXCEPT:
			p.nextToken()
			body.Op = SetOpExcept
			body.All = p.match(TOKEN_ALL)
		}

		// Parse the right side (recursively for chained operations)
		body.Right = p.parseSelectBody()
	}

	return body
}

// parseSelectTerm parses a SELECT core or a parenthesized select statement
// followed by optional trailing ORDER BY / LIMIT.
func (p *Parser) parseSelectTerm() Statement {
	if p.match(TOKEN_LPAREN) {
		inner := p.parseSubStatement()
		p.expect(TOKEN_RPAREN)
		return inner
	}
	if p.check(TOKEN_VALUES) {
		return p.parseValues()
	}
	return p.parseSelectCore()
}

// parseSelectCore parses a single SELECT clause and its trailing clauses.
func (p *Parser) parseSelectCore() *SelectCore {
	core := &SelectCore{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	if !p.expect(TOKEN_SELECT) {
		return core
	}

	// DISTINCT [ON (...)] / ALL
	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
		if p.match(TOKEN_ON) {
			p.expect(TOKEN_LPAREN)
			core.DistinctOn = p.parseExpressionList()
			p.expect(TOKEN_RPAREN)
		}
	} else {
		p.match(TOKEN_ALL)
	}

	// An empty select list is valid in PostgreSQL (SELECT FROM t).
	if !p.check(TOKEN_FROM) && !p.isSelectTerminator() {
		core.Columns = p.parseSelectList()
	}

	if p.check(TOKEN_INTO) {
		core.Into = p.parseInto()
	}

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}

	p.parseClauses(core)
	return core
}

// isSelectTerminator reports whether the current token ends a select core.
func (p *Parser) isSelectTerminator() bool {
	switch p.token.Type {
	case TOKEN_EOF, TOKEN_SEMICOLON, TOKEN_RPAREN, TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
		return true
	}
	return false
}

// parseInto parses INTO [TEMP|TEMPORARY|UNLOGGED] [TABLE] target.
func (p *Parser) parseInto() *IntoClause {
	into := &IntoClause{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	p.expect(TOKEN_INTO)
	for p.checkWord("temp") || p.checkWord("temporary") || p.checkWord("unlogged") || p.checkWord("table") {
		p.nextToken()
	}
	into.Target = strings.Join(p.parseQualifiedName("table name"), ".")
	return into
}

// parseClauses parses the optional clauses after FROM in their fixed order.
func (p *Parser) parseClauses(core *SelectCore) {
	if p.match(TOKEN_WHERE) {
		core.Where = p.parseExpression()
	}

	if p.match(TOKEN_GROUP) {
		p.expect(TOKEN_BY)
		core.GroupBy = p.parseGroupByList()
	}

	if p.match(TOKEN_HAVING) {
		core.Having = p.parseExpression()
	}

	if p.match(TOKEN_WINDOW) {
		core.Windows = p.parseWindowDefs()
	}

	if p.matchWord("qualify") {
		core.Qualify = p.parseExpression()
	}

	p.parseTail(core)

	// SELECT ... INTO is also accepted after the FROM clause by some engines.
	if core.Into == nil && p.check(TOKEN_INTO) {
		core.Into = p.parseInto()
	}
}

// parseTail parses ORDER BY, LIMIT/OFFSET/FETCH and locking clauses.
func (p *Parser) parseTail(core *SelectCore) {
	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		core.OrderBy = p.parseOrderByList()
	}

	p.parseLimitOffset(core)

	for p.check(TOKEN_FOR) && !p.failed() {
		core.Locking = append(core.Locking, p.parseLocking())
	}
}

// parseLimitOffset parses LIMIT, OFFSET and FETCH in either order.
func (p *Parser) parseLimitOffset(core *SelectCore) {
	for !p.failed() {
		switch {
		case p.match(TOKEN_LIMIT):
			if p.match(TOKEN_ALL) {
				continue
			}
			core.Limit = p.parseExpression()
		case p.match(TOKEN_OFFSET):
			core.Offset = p.parseExpression()
			if !p.matchWord("rows") {
				p.matchWord("row")
			}
		case p.match(TOKEN_FETCH):
			core.Fetch = p.parseFetch()
		default:
			return
		}
	}
}

// parseFetch parses FETCH {FIRST|NEXT} [n] {ROW|ROWS} {ONLY|WITH TIES}.
func (p *Parser) parseFetch() Expr {
	if !p.matchWord("first") && !p.matchWord("next") {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "FIRST or NEXT"))
		return nil
	}

	var count Expr
	if !p.checkWord("row") && !p.checkWord("rows") {
		count = p.parseExpression()
	}
	if !p.matchWord("rows") {
		p.expectWord("row")
	}

	if p.match(TOKEN_WITH) {
		p.expectWord("ties")
	} else {
		p.expectWord("only")
	}
	return count
}

// parseLocking parses FOR {UPDATE|NO KEY UPDATE|SHARE|KEY SHARE} [OF ...] [NOWAIT|SKIP LOCKED].
func (p *Parser) parseLocking() *LockingClause {
	lock := &LockingClause{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	p.expect(TOKEN_FOR)

	var words []string
	for p.checkWord("update") || p.checkWord("share") || p.checkWord("no") || p.checkWord("key") {
		words = append(words, strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	if len(words) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "UPDATE or SHARE"))
		return lock
	}
	lock.Strength = strings.Join(words, " ")

	if p.matchWord("of") {
		for !p.failed() {
			lock.Of = append(lock.Of, strings.Join(p.parseQualifiedName("table name"), "."))
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}

	switch {
	case p.matchWord("nowait"):
	case p.matchWord("skip"):
		p.expectWord("locked")
	}
	return lock
}

// parseValues parses a VALUES row list.
func (p *Parser) parseValues() *ValuesStmt {
	values := &ValuesStmt{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	p.expect(TOKEN_VALUES)

	for !p.failed() {
		p.expect(TOKEN_LPAREN)
		values.Rows = append(values.Rows, p.parseExpressionList())
		p.expect(TOKEN_RPAREN)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return values
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem

	for !p.failed() {
		items = append(items, p.parseSelectItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	// Check for * (optionally followed by DuckDB EXCLUDE/REPLACE modifiers)
	if p.check(TOKEN_STAR) {
		item.Star = true
		p.nextToken()
		p.parseStarModifiers()
		return item
	}

	// Check for table.* pattern using 3-token lookahead (no rollback needed)
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		item.TableStar = p.token.Literal
		p.nextToken() // consume identifier
		p.nextToken() // consume DOT
		p.nextToken() // consume STAR
		p.parseStarModifiers()
		return item
	}

	item.Expr = p.parseExpression()
	item.Alias = p.parseOptionalAlias()
	return item
}

// parseStarModifiers skips * EXCLUDE (...) / * REPLACE (...).
func (p *Parser) parseStarModifiers() {
	for (p.checkWord("exclude") || p.checkWord("replace")) && p.checkPeek(TOKEN_LPAREN) && !p.failed() {
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		for !p.failed() {
			p.parseExpression()
			p.parseOptionalAlias()
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		p.expect(TOKEN_RPAREN)
	}
}

// parseGroupByList parses the GROUP BY list.
func (p *Parser) parseGroupByList() []Expr {
	if p.match(TOKEN_ALL) {
		return nil
	}

	var exprs []Expr
	for !p.failed() {
		if p.checkWord("grouping") && isWord(p.peek, "sets") {
			p.nextToken()
			p.nextToken()
			p.expect(TOKEN_LPAREN)
			exprs = append(exprs, p.parseExpressionList()...)
			p.expect(TOKEN_RPAREN)
		} else {
			exprs = append(exprs, p.parseExpression())
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}

// parseOrderByList parses a list of ORDER BY items.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem

	for !p.failed() {
		items = append(items, p.parseOrderByItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseOrderByItem parses a single ORDER BY item.
func (p *Parser) parseOrderByItem() OrderByItem {
	item := OrderByItem{}
	item.Expr = p.parseExpression()

	// ASC / DESC
	if p.match(TOKEN_ASC) {
		item.Desc = false
	} else if p.match(TOKEN_DESC) {
		item.Desc = true
	}

	// NULLS FIRST / LAST
	if p.matchWord("nulls") {
		switch {
		case p.matchWord("first"):
			b := true
			item.NullsFirst = &b
		case p.matchWord("last"):
			b := false
			item.NullsFirst = &b
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "FIRST or LAST"))
		}
	}

	return item
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for !p.failed() {
		exprs = append(exprs, p.parseExpression())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return exprs
}
