package parser

import (
	"fmt"
	"strings"
)

// Window specification parsing: OVER clauses, PARTITION BY, ORDER BY, frame specs.
//
// Grammar:
//
//	window_spec   → identifier | "(" [base_window] [PARTITION BY expr_list] [ORDER BY order_list] [frame_spec] ")"
//	window_list   → identifier AS window_spec ("," identifier AS window_spec)*
//	frame_spec    → (ROWS|RANGE|GROUPS) frame_extent [EXCLUDE ...]
//	frame_extent  → BETWEEN frame_bound AND frame_bound | frame_bound
//	frame_bound   → UNBOUNDED PRECEDING | UNBOUNDED FOLLOWING | CURRENT ROW | expr PRECEDING | expr FOLLOWING
//
// PARTITION, ROWS, RANGE, GROUPS, UNBOUNDED, PRECEDING, FOLLOWING and CURRENT
// are non-reserved and matched by spelling.

// parseWindowSpec parses a window specification.
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}

	// Named window reference
	if p.check(TOKEN_IDENT) {
		spec.Name = p.token.Literal
		p.nextToken()
		return spec
	}

	p.expect(TOKEN_LPAREN)

	// Base window name: OVER (w ORDER BY ...)
	if p.check(TOKEN_IDENT) && !p.checkWord("partition") && !isFrameWord(p.token) {
		spec.Name = p.token.Literal
		p.nextToken()
	}

	if p.matchWord("partition") {
		p.expect(TOKEN_BY)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}

	if isFrameWord(p.token) {
		spec.Frame = p.parseFrameSpec()
	}

	p.expect(TOKEN_RPAREN)
	return spec
}

// parseWindowDefs parses the WINDOW clause list.
func (p *Parser) parseWindowDefs() []WindowDef {
	var defs []WindowDef
	for !p.failed() {
		def := WindowDef{Name: p.parseIdent("window name")}
		p.expect(TOKEN_AS)
		def.Spec = p.parseWindowSpec()
		defs = append(defs, def)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return defs
}

func isFrameWord(tok Token) bool {
	return isWord(tok, "rows") || isWord(tok, "range") || isWord(tok, "groups")
}

// parseFrameSpec parses a window frame specification.
func (p *Parser) parseFrameSpec() *FrameSpec {
	frame := &FrameSpec{Type: strings.ToUpper(p.token.Literal)}
	p.nextToken()

	if p.match(TOKEN_BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(TOKEN_AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}

	// EXCLUDE CURRENT ROW | GROUP | TIES | NO OTHERS
	if p.matchWord("exclude") {
		switch {
		case p.matchWord("current"):
			p.expectWord("row")
		case p.match(TOKEN_GROUP), p.matchWord("ties"):
		case p.matchWord("no"):
			p.expectWord("others")
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "CURRENT ROW, GROUP, TIES or NO OTHERS"))
		}
	}

	return frame
}

// parseFrameBound parses a frame bound.
func (p *Parser) parseFrameBound() *FrameBound {
	bound := &FrameBound{}

	switch {
	case p.matchWord("unbounded"):
		switch {
		case p.matchWord("preceding"):
			bound.Type = "UNBOUNDED PRECEDING"
		case p.matchWord("following"):
			bound.Type = "UNBOUNDED FOLLOWING"
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "PRECEDING or FOLLOWING"))
		}

	case p.checkWord("current") && isWord(p.peek, "row"):
		p.nextToken()
		p.nextToken()
		bound.Type = "CURRENT ROW"

	default:
		// N PRECEDING or N FOLLOWING
		bound.Offset = p.parseExpressionWithPrecedence(PrecedenceAddition)
		switch {
		case p.matchWord("preceding"):
			bound.Type = "PRECEDING"
		case p.matchWord("following"):
			bound.Type = "FOLLOWING"
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "PRECEDING or FOLLOWING"))
		}
	}

	return bound
}
