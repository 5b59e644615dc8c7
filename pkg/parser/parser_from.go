package parser

import (
	"fmt"
	"strings"
)

// FROM clause parsing: table references, derived tables, table functions, JOINs.
//
// Grammar:
//
//	from_clause   → table_ref (join)*
//	table_ref     → [LATERAL] (table_name | table_func | derived_table) | "(" from_clause ")"
//	table_name    → [catalog "."] [schema "."] identifier [alias]
//	table_func    → name "(" args ")" [WITH ORDINALITY] [alias ["(" ident_list ")"]]
//	derived_table → "(" statement ")" [alias ["(" ident_list ")"]]
//	join          → [NATURAL] join_type JOIN table_ref [ON expr | USING "(" ident_list ")"]
//	              | "," table_ref
//	join_type     → [INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{NodeInfo: NodeInfo{Pos: p.token.Pos}}
	from.Source = p.parseTableRef()

	for !p.failed() {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() TableRef {
	pos := p.token.Pos
	lateral := p.match(TOKEN_LATERAL)

	if p.match(TOKEN_LPAREN) {
		if p.startsSubStatement() || p.check(TOKEN_LPAREN) && (p.checkPeek(TOKEN_SELECT) || p.checkPeek(TOKEN_WITH) || p.checkPeek(TOKEN_VALUES)) {
			derived := &DerivedTable{NodeInfo: NodeInfo{Pos: pos}, Lateral: lateral}
			derived.Body = p.parseSubStatement()
			p.expect(TOKEN_RPAREN)
			derived.Alias, derived.Columns = p.parseTableAlias()
			return derived
		}

		nested := &ParenJoin{NodeInfo: NodeInfo{Pos: pos}}
		nested.From = p.parseFromClause()
		p.expect(TOKEN_RPAREN)
		nested.Alias, _ = p.parseTableAlias()
		return nested
	}

	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected table name, got %s", p.token))
		return nil
	}

	parts := p.parseQualifiedName("table name")

	if p.check(TOKEN_LPAREN) {
		call, _ := p.parseFuncCall(parts, pos).(*FuncCall)
		fn := &TableFunc{NodeInfo: NodeInfo{Pos: pos}, Lateral: lateral, Call: call}
		if p.check(TOKEN_WITH) && isWord(p.peek, "ordinality") {
			p.nextToken()
			p.nextToken()
		}
		fn.Alias, fn.Columns = p.parseTableAlias()
		return fn
	}

	table := &TableName{NodeInfo: NodeInfo{Pos: pos}}
	switch len(parts) {
	case 1:
		table.Name = parts[0]
	case 2:
		table.Schema = parts[0]
		table.Name = parts[1]
	default:
		table.Catalog = parts[len(parts)-3]
		table.Schema = parts[len(parts)-2]
		table.Name = parts[len(parts)-1]
	}
	table.Alias, _ = p.parseTableAlias()
	return table
}

// parseQualifiedName parses identifier ("." identifier)*.
func (p *Parser) parseQualifiedName(what string) []string {
	parts := []string{p.parseIdent(what)}
	for !p.failed() && p.match(TOKEN_DOT) {
		parts = append(parts, p.parseIdent(what))
	}
	return parts
}

// parseTableAlias parses [AS] alias ["(" column_aliases ")"].
func (p *Parser) parseTableAlias() (string, []string) {
	alias := p.parseOptionalAlias()
	if alias == "" || !p.check(TOKEN_LPAREN) {
		return alias, nil
	}
	return alias, p.parseIdentList("column alias")
}

// parseJoin parses a JOIN clause. Returns nil when no join follows.
func (p *Parser) parseJoin() *Join {
	join := &Join{NodeInfo: NodeInfo{Pos: p.token.Pos}}

	// Comma join (implicit cross join)
	if p.match(TOKEN_COMMA) {
		join.Type = JoinComma
		join.Right = p.parseTableRef()
		return join
	}

	if p.match(TOKEN_NATURAL) {
		join.Natural = true
	}

	switch {
	case p.match(TOKEN_INNER):
		join.Type = JoinInner
	case p.match(TOKEN_LEFT):
		join.Type = JoinLeft
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_RIGHT):
		join.Type = JoinRight
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_FULL):
		join.Type = JoinFull
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_CROSS):
		join.Type = JoinCross
	case p.check(TOKEN_JOIN):
		join.Type = JoinInner
	default:
		if join.Natural {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, TOKEN_JOIN))
		}
		return nil
	}

	// DuckDB ASOF / SEMI / ANTI modifiers
	if p.checkWord("semi") || p.checkWord("anti") || p.checkWord("asof") {
		join.Type = JoinType(strings.ToUpper(p.token.Literal))
		p.nextToken()
	}

	if !p.expect(TOKEN_JOIN) {
		return nil
	}

	join.Right = p.parseTableRef()
	p.parseJoinCondition(join)
	return join
}

// parseJoinCondition handles ON/USING/NATURAL validation.
func (p *Parser) parseJoinCondition(join *Join) {
	switch {
	case join.Natural || join.Type == JoinCross:
		if p.check(TOKEN_ON) || p.check(TOKEN_USING) {
			p.addError(fmt.Sprintf("%s JOIN cannot have %s clause", joinLabel(join), p.token.Type))
		}
	case p.match(TOKEN_ON):
		join.Condition = p.parseExpression()
	case p.check(TOKEN_USING):
		p.nextToken()
		join.Using = p.parseIdentList("column name in USING clause")
	}
}

func joinLabel(join *Join) string {
	if join.Natural {
		return "NATURAL"
	}
	return string(join.Type)
}
