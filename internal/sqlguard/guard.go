// Package sqlguard decides whether a generated query is safe to run against a
// read-only analytics connection.
//
// The check is structural: the text is parsed with pkg/parser and the whole
// tree is walked, so a data-modifying statement hidden in a CTE body, derived
// table or subquery is found wherever it sits.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/lumen/pkg/core"
	"github.com/leapstack-labs/lumen/pkg/parser"
)

// Validate accepts exactly one read-only SELECT statement. On success the
// returned value is sql unchanged.
func Validate(sql string) core.Result[string] {
	stmts, err := parser.ParseScript(sql)
	if err != nil {
		return core.Fail[string](parseDiagnostic(err))
	}

	if len(stmts) > 1 {
		return core.Fail[string](core.Errorf(core.CodeValidationError,
			"expected a single statement, got %d", len(stmts)).
			WithHint("Send one SELECT statement at a time"))
	}

	stmt := stmts[0]
	if _, ok := stmt.(*parser.SelectStmt); !ok {
		return core.Fail[string](core.Errorf(core.CodeValidationError,
			"only SELECT statements are allowed, got %s", describe(stmt)).
			WithHint("Rewrite the request as a read-only SELECT query"))
	}

	if v := findViolation(stmt); v != "" {
		return core.Fail[string](core.Errorf(core.CodeValidationError,
			"query contains a disallowed %s", v).
			WithHint("Rewrite the request as a read-only SELECT query"))
	}

	return core.Ok(sql)
}

func parseDiagnostic(err error) core.Diagnostic {
	var perr *parser.ParseError
	if errors.As(err, &perr) && perr.Message == parser.ErrEmptyInput {
		return core.Errorf(core.CodeSQLParseError, "empty query")
	}
	return core.Errorf(core.CodeSQLParseError, "%s", err.Error()).
		WithHint("Check SQL syntax")
}

// findViolation walks the tree and describes the first write, DDL, DCL,
// table-creating or row-locking construct it finds.
func findViolation(stmt parser.Statement) string {
	var found string
	parser.Inspect(stmt, func(n parser.Node) bool {
		if found != "" {
			return false
		}
		switch v := n.(type) {
		case *parser.WriteStmt:
			found = v.Kind + " statement"
		case *parser.CommandStmt:
			found = v.Name + " command"
		case *parser.IntoClause:
			found = fmt.Sprintf("SELECT INTO (creates %s)", v.Target)
		case *parser.LockingClause:
			found = "FOR " + v.Strength + " locking clause"
		}
		return found == ""
	})
	return found
}

func describe(stmt parser.Statement) string {
	switch v := stmt.(type) {
	case *parser.WriteStmt:
		return v.Kind
	case *parser.CommandStmt:
		return strings.ToUpper(v.Name)
	case *parser.ValuesStmt:
		return "VALUES"
	default:
		return fmt.Sprintf("%T", stmt)
	}
}
