package parser

import "strings"

// Write and command statements.
//
// Grammar:
//
//	write_stmt → [WITH cte_list] write_kind <tokens up to ";" or unbalanced ")">
//	command    → identifier <tokens up to ";">
//
// Bodies are skipped with paren balancing. Callers only need to know that a
// write happened and where.

// writeKinds lists statement keywords that modify data, schema or grants.
var writeKinds = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"merge":    true,
	"upsert":   true,
	"replace":  true,
	"truncate": true,
	"create":   true,
	"alter":    true,
	"drop":     true,
	"rename":   true,
	"grant":    true,
	"revoke":   true,
	"copy":     true,
	"attach":   true,
	"detach":   true,
	"install":  true,
	"load":     true,
	"export":   true,
	"import":   true,
	"vacuum":   true,
	"comment":  true,
	"reindex":  true,
	"cluster":  true,
	"refresh":  true,
}

// IsWriteKeyword reports whether word starts a data-modifying, DDL or DCL
// statement.
func IsWriteKeyword(word string) bool {
	return writeKinds[strings.ToLower(word)]
}

// isWriteStart reports whether the current token starts a write statement
// inside a nested position. A bare column that happens to be named "update"
// or "delete" is followed by an operator or punctuation, whereas a statement
// is followed by its target or a keyword such as INTO or FROM.
func (p *Parser) isWriteStart() bool {
	if !p.check(TOKEN_IDENT) {
		return false
	}
	kind := strings.ToLower(p.token.Literal)
	if !writeKinds[kind] {
		return false
	}

	switch kind {
	case "insert", "merge":
		return p.checkPeek(TOKEN_INTO) || p.checkPeek(TOKEN_IDENT)
	case "delete":
		return p.checkPeek(TOKEN_FROM) || p.checkPeek(TOKEN_IDENT)
	case "create":
		return p.checkPeek(TOKEN_IDENT) || p.checkPeek(TOKEN_OR)
	case "grant", "revoke":
		return p.checkPeek(TOKEN_IDENT) || p.checkPeek(TOKEN_SELECT) || p.checkPeek(TOKEN_ALL)
	case "replace":
		return p.checkPeek(TOKEN_INTO)
	default:
		return p.checkPeek(TOKEN_IDENT)
	}
}

// parseWriteStmt consumes a write statement whose keyword is the current
// token. with is the WITH clause that preceded it, if any.
func (p *Parser) parseWriteStmt(with *WithClause) *WriteStmt {
	stmt := &WriteStmt{
		NodeInfo: NodeInfo{Pos: p.token.Pos},
		Kind:     strings.ToUpper(p.token.Literal),
		With:     with,
	}
	p.nextToken()
	p.skipStatementBody()
	return stmt
}

// parseCommand consumes any other top-level command.
func (p *Parser) parseCommand() *CommandStmt {
	stmt := &CommandStmt{
		NodeInfo: NodeInfo{Pos: p.token.Pos},
		Name:     strings.ToUpper(p.token.Literal),
	}
	p.nextToken()
	p.skipStatementBody()
	return stmt
}

// skipStatementBody advances to the end of the current statement: a top-level
// ";", EOF, or an unbalanced ")" that closes the enclosing subquery.
func (p *Parser) skipStatementBody() {
	depth := 0
	for !p.failed() {
		switch p.token.Type {
		case TOKEN_EOF:
			return
		case TOKEN_SEMICOLON:
			if depth == 0 {
				return
			}
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				return
			}
			depth--
		case TOKEN_ILLEGAL:
			p.addError(p.token.Literal)
			return
		}
		p.nextToken()
	}
}
