// Package parser provides a grammar-aware SQL parser used to prove that a
// query is read-only.
//
// # Usage
//
//	stmts, err := parser.ParseScript("SELECT a, b FROM t")
//	if err != nil {
//	    // handle *ParseError
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser with Pratt expression
// parsing for the read side of SQL (PostgreSQL and DuckDB flavored):
//
//	script        → statement (";" statement)* [";"]
//	statement     → select_stmt | values | write_stmt | command
//	select_stmt   → [WITH cte_list] select_body
//	select_body   → select_term [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_term   → select_core | "(" select_stmt ")"
//	select_core   → SELECT [DISTINCT [ON (...)]|ALL] select_list [INTO target]
//	                [FROM from_clause] [WHERE expr] [GROUP BY group_list]
//	                [HAVING expr] [WINDOW window_list] [QUALIFY expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr] [FETCH ...]
//	                [FOR UPDATE|SHARE ...]
//
// Data-modifying, DDL and DCL statements are recognized wherever a statement
// may appear (top level, CTE bodies, subqueries) and returned as *WriteStmt
// nodes. Their bodies are skipped. See each file for detailed grammar rules.
package parser

import (
	"fmt"
	"strings"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// ParseScript parses every semicolon-separated statement in sql.
// Empty statements (stray semicolons) are skipped. Input with no statement
// at all is an error.
func ParseScript(sql string) ([]Statement, error) {
	p := NewParser(sql)
	var stmts []Statement

	for {
		for p.match(TOKEN_SEMICOLON) {
		}
		if p.check(TOKEN_EOF) {
			break
		}

		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		stmts = append(stmts, stmt)

		if p.check(TOKEN_EOF) {
			break
		}
		if !p.check(TOKEN_SEMICOLON) {
			if p.check(TOKEN_ILLEGAL) {
				p.addError(p.illegalMessage())
			} else {
				p.addError(fmt.Sprintf(ErrUnexpectedInput, p.token))
			}
			return nil, p.errors[0]
		}
	}

	if len(stmts) == 0 {
		return nil, &ParseError{Pos: Position{Line: 1, Column: 1}, Message: ErrEmptyInput}
	}
	return stmts, nil
}

// Parse parses exactly one statement.
func Parse(sql string) (Statement, error) {
	stmts, err := ParseScript(sql)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, &ParseError{Pos: Position{Line: 1, Column: 1}, Message: fmt.Sprintf("expected one statement, found %d", len(stmts))}
	}
	return stmts[0], nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// checkPeek2 returns true if the peek2 token is of the given type.
func (p *Parser) checkPeek2(t TokenType) bool {
	return p.peek2.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, t))
	return false
}

// addError adds a parse error.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// failed reports whether parsing has already gone wrong. Loops check it so
// that a bad token cannot make them spin.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// ---------- Non-reserved word helpers ----------

// isWord reports whether tok is an unquoted identifier spelling word.
func isWord(tok Token, word string) bool {
	return tok.Type == TOKEN_IDENT && strings.EqualFold(tok.Literal, word)
}

// checkWord returns true if the current token is the non-reserved word.
func (p *Parser) checkWord(word string) bool {
	return isWord(p.token, word)
}

// matchWord consumes the current token if it is the non-reserved word.
func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.nextToken()
		return true
	}
	return false
}

// expectWord consumes the non-reserved word or adds an error.
func (p *Parser) expectWord(word string) bool {
	if p.matchWord(word) {
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, strings.ToUpper(word)))
	return false
}

// parseIdent consumes an identifier and returns its text.
func (p *Parser) parseIdent(what string) string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected %s, got %s", what, p.token))
		return ""
	}
	name := p.token.Literal
	p.nextToken()
	return name
}

// parseIdentList parses "(" ident ("," ident)* ")".
func (p *Parser) parseIdentList(what string) []string {
	p.expect(TOKEN_LPAREN)
	var names []string
	for !p.failed() {
		names = append(names, p.parseIdent(what))
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return names
}

// clauseWords are non-reserved words that start a clause and therefore
// cannot be read as an implicit alias.
var clauseWords = map[string]bool{
	"qualify":     true,
	"returning":   true,
	"tablesample": true,
}

// isAliasToken reports whether the current token can be an implicit alias
// (an alias written without AS).
func (p *Parser) isAliasToken() bool {
	if !p.check(TOKEN_IDENT) {
		return false
	}
	return !clauseWords[strings.ToLower(p.token.Literal)]
}

// parseOptionalAlias parses [AS] alias.
func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_STRING) {
			alias := p.token.Literal
			p.nextToken()
			return alias
		}
		return p.parseIdent("alias")
	}
	if p.isAliasToken() {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}
