package parser

import "github.com/leapstack-labs/lumen/pkg/token"

// Node is implemented by every AST node.
type Node interface {
	node()
}

// Statement represents a SQL statement.
type Statement interface {
	Node
	stmtNode()
}

// Expr represents an expression in SQL.
type Expr interface {
	Node
	exprNode()
}

// TableRef represents a table reference in FROM clause.
type TableRef interface {
	Node
	tableRefNode()
}

// NodeInfo provides the source position of a node.
type NodeInfo struct {
	Pos token.Position
}

// Position returns where the node starts in the source.
func (n NodeInfo) Position() token.Position {
	return n.Pos
}

// ---------- Statement Types ----------

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	NodeInfo
	With *WithClause
	Body *SelectBody
	// Tail holds ORDER BY / LIMIT / locking clauses that follow a
	// parenthesized term and apply to the whole body.
	Tail *SelectCore
}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression. The body is any statement so that
// data-modifying CTEs (WITH d AS (DELETE ...)) survive parsing and can be
// rejected by callers.
type CTE struct {
	NodeInfo
	Name    string
	Columns []string
	Body    Statement
}

// SetOpType represents the type of set operation.
type SetOpType string

// Set operation types.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectBody represents the body of a SELECT with possible set operations.
// Left is either a *SelectCore or a parenthesized *SelectStmt.
type SelectBody struct {
	NodeInfo
	Left  Statement
	Op    SetOpType
	All   bool
	Right *SelectBody
}

// SelectCore represents the core SELECT clause.
type SelectCore struct {
	NodeInfo
	Distinct   bool
	DistinctOn []Expr
	Columns    []SelectItem
	Into       *IntoClause
	From       *FromClause
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	Windows    []WindowDef
	Qualify    Expr
	OrderBy    []OrderByItem
	Limit      Expr
	Offset     Expr
	Fetch      Expr
	Locking    []*LockingClause
}

// IntoClause represents SELECT ... INTO target, which creates a table.
type IntoClause struct {
	NodeInfo
	Target string
}

// LockingClause represents FOR UPDATE / FOR SHARE row locking.
type LockingClause struct {
	NodeInfo
	Strength string
	Of       []string
}

// ValuesStmt represents a VALUES list used as a row source.
type ValuesStmt struct {
	NodeInfo
	Rows [][]Expr
}

// WriteStmt represents a data-modifying, DDL or DCL statement. Its body is
// skipped rather than parsed; only its kind matters.
type WriteStmt struct {
	NodeInfo
	Kind string
	With *WithClause
}

// CommandStmt represents any other top-level command (SET, SHOW, EXPLAIN,
// BEGIN, CALL, ...).
type CommandStmt struct {
	NodeInfo
	Name string
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
}

// WindowDef is a named window from the WINDOW clause.
type WindowDef struct {
	Name string
	Spec *WindowSpec
}

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// ---------- Table References ----------

// FromClause represents the FROM clause.
type FromClause struct {
	NodeInfo
	Source TableRef
	Joins  []*Join
}

// JoinType represents the type of join.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// Join represents a JOIN clause.
type Join struct {
	NodeInfo
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr
	Using     []string
}

// TableName represents a table name reference.
type TableName struct {
	NodeInfo
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	NodeInfo
	Lateral bool
	Body    Statement
	Alias   string
	Columns []string
}

// TableFunc represents a set-returning function in FROM, e.g.
// generate_series(1, 3) AS gs(n).
type TableFunc struct {
	NodeInfo
	Lateral bool
	Call    *FuncCall
	Alias   string
	Columns []string
}

// ParenJoin represents a parenthesized join tree in FROM.
type ParenJoin struct {
	NodeInfo
	From  *FromClause
	Alias string
}

// ---------- Expressions ----------

// Literal represents a literal value.
type Literal struct {
	NodeInfo
	Type  LiteralType
	Value string
}

// LiteralType represents the type of a literal.
type LiteralType int

// Literal types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralParam
)

// TypedLiteral represents DATE '2024-01-01', INTERVAL '1 month' and friends.
type TypedLiteral struct {
	NodeInfo
	TypeName string
	Value    string
}

// ColumnRef represents a (possibly qualified) column reference or t.*.
type ColumnRef struct {
	NodeInfo
	Parts []string
	Star  bool
}

// Name returns the unqualified column name.
func (c *ColumnRef) Name() string {
	if len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[len(c.Parts)-1]
}

// StarExpr represents a bare * inside an expression context such as count(*).
type StarExpr struct {
	NodeInfo
}

// BinaryExpr represents a binary expression (a op b).
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    token.TokenType
	Right Expr
}

// UnaryExpr represents a unary expression (NOT a, -a).
type UnaryExpr struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

// FuncCall represents a function call.
type FuncCall struct {
	NodeInfo
	Name        []string
	Distinct    bool
	Star        bool
	Args        []Expr
	OrderBy     []OrderByItem // string_agg(x, ',' ORDER BY y)
	WithinGroup []OrderByItem
	Filter      Expr
	Window      *WindowSpec
}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	NodeInfo
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// WhenClause represents a WHEN clause in CASE.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type) and expr::type.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

// InExpr represents an IN expression.
type InExpr struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr
	Query  Statement
}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// IsExpr represents IS [NOT] NULL/TRUE/FALSE/DISTINCT FROM.
type IsExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value string // NULL, TRUE, FALSE, DISTINCT FROM
	Right Expr   // only for DISTINCT FROM
}

// LikeExpr represents [NOT] LIKE / ILIKE.
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	ILike   bool
	Pattern Expr
	Escape  Expr
}

// ExistsExpr represents an EXISTS expression.
type ExistsExpr struct {
	NodeInfo
	Not   bool
	Query Statement
}

// SubqueryExpr represents a scalar subquery or a quantified subquery
// argument such as ANY (SELECT ...).
type SubqueryExpr struct {
	NodeInfo
	Query Statement
}

// ParenExpr represents a parenthesized expression or a row constructor.
type ParenExpr struct {
	NodeInfo
	Exprs []Expr
}

// IndexExpr represents an array subscript or slice a[i] / a[i:j].
type IndexExpr struct {
	NodeInfo
	Expr  Expr
	Index Expr
}

// ArrayExpr represents ARRAY[...] or a bracketed list literal.
type ArrayExpr struct {
	NodeInfo
	Elems []Expr
	Query Statement
}

// ---------- Window Specifications ----------

// WindowSpec represents a window specification (OVER clause).
type WindowSpec struct {
	Name        string
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  string // ROWS, RANGE, GROUPS
	Start *FrameBound
	End   *FrameBound
}

// FrameBound represents a frame boundary.
type FrameBound struct {
	Type   string // UNBOUNDED PRECEDING, CURRENT ROW, ...
	Offset Expr
}

// ---------- Marker methods ----------

func (*SelectStmt) node()    {}
func (*WithClause) node()    {}
func (*CTE) node()           {}
func (*SelectBody) node()    {}
func (*SelectCore) node()    {}
func (*IntoClause) node()    {}
func (*LockingClause) node() {}
func (*ValuesStmt) node()    {}
func (*WriteStmt) node()     {}
func (*CommandStmt) node()   {}
func (*FromClause) node()    {}
func (*Join) node()          {}
func (*TableName) node()     {}
func (*DerivedTable) node()  {}
func (*TableFunc) node()     {}
func (*ParenJoin) node()     {}
func (*Literal) node()       {}
func (*TypedLiteral) node()  {}
func (*ColumnRef) node()     {}
func (*StarExpr) node()      {}
func (*BinaryExpr) node()    {}
func (*UnaryExpr) node()     {}
func (*FuncCall) node()      {}
func (*CaseExpr) node()      {}
func (*CastExpr) node()      {}
func (*InExpr) node()        {}
func (*BetweenExpr) node()   {}
func (*IsExpr) node()        {}
func (*LikeExpr) node()      {}
func (*ExistsExpr) node()    {}
func (*SubqueryExpr) node()  {}
func (*ParenExpr) node()     {}
func (*IndexExpr) node()     {}
func (*ArrayExpr) node()     {}

func (*SelectStmt) stmtNode()  {}
func (*SelectCore) stmtNode()  {}
func (*ValuesStmt) stmtNode()  {}
func (*WriteStmt) stmtNode()   {}
func (*CommandStmt) stmtNode() {}

func (*TableName) tableRefNode()    {}
func (*DerivedTable) tableRefNode() {}
func (*TableFunc) tableRefNode()    {}
func (*ParenJoin) tableRefNode()    {}

func (*Literal) exprNode()      {}
func (*TypedLiteral) exprNode() {}
func (*ColumnRef) exprNode()    {}
func (*StarExpr) exprNode()     {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*FuncCall) exprNode()     {}
func (*CaseExpr) exprNode()     {}
func (*CastExpr) exprNode()     {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*IsExpr) exprNode()       {}
func (*LikeExpr) exprNode()     {}
func (*ExistsExpr) exprNode()   {}
func (*SubqueryExpr) exprNode() {}
func (*ParenExpr) exprNode()    {}
func (*IndexExpr) exprNode()    {}
func (*ArrayExpr) exprNode()    {}
