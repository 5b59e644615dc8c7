package parser

// Inspect traverses the tree rooted at node in depth-first order. It calls
// f(node); if f returns true, Inspect recurses into each child of node.
// Nil nodes are skipped.
func Inspect(node Node, f func(Node) bool) {
	if isNil(node) || !f(node) {
		return
	}
	for _, child := range children(node) {
		Inspect(child, f)
	}
}

// isNil reports whether n is nil or a typed nil pointer.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *SelectBody:
		return v == nil
	case *SelectCore:
		return v == nil
	case *WithClause:
		return v == nil
	case *FromClause:
		return v == nil
	case *FuncCall:
		return v == nil
	case *IntoClause:
		return v == nil
	}
	return false
}

// children returns the direct child nodes of n.
func children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if !isNil(c) {
				out = append(out, c)
			}
		}
	}
	addExprs := func(exprs []Expr) {
		for _, e := range exprs {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addOrder := func(items []OrderByItem) {
		for _, item := range items {
			if item.Expr != nil {
				out = append(out, item.Expr)
			}
		}
	}
	addWindow := func(w *WindowSpec) {
		if w == nil {
			return
		}
		addExprs(w.PartitionBy)
		addOrder(w.OrderBy)
		if w.Frame != nil {
			for _, b := range []*FrameBound{w.Frame.Start, w.Frame.End} {
				if b != nil && b.Offset != nil {
					out = append(out, b.Offset)
				}
			}
		}
	}

	switch v := n.(type) {
	case *SelectStmt:
		if v.With != nil {
			add(v.With)
		}
		if v.Body != nil {
			add(v.Body)
		}
		if v.Tail != nil {
			add(v.Tail)
		}
	case *WithClause:
		for _, cte := range v.CTEs {
			add(cte)
		}
	case *CTE:
		if v.Body != nil {
			add(v.Body)
		}
	case *SelectBody:
		if v.Left != nil {
			add(v.Left)
		}
		if v.Right != nil {
			add(v.Right)
		}
	case *SelectCore:
		addExprs(v.DistinctOn)
		for _, item := range v.Columns {
			if item.Expr != nil {
				add(item.Expr)
			}
		}
		if v.Into != nil {
			add(v.Into)
		}
		if v.From != nil {
			add(v.From)
		}
		add(v.Where)
		addExprs(v.GroupBy)
		add(v.Having)
		for _, w := range v.Windows {
			addWindow(w.Spec)
		}
		add(v.Qualify)
		addOrder(v.OrderBy)
		add(v.Limit, v.Offset, v.Fetch)
		for _, l := range v.Locking {
			add(l)
		}
	case *ValuesStmt:
		for _, row := range v.Rows {
			addExprs(row)
		}
	case *WriteStmt:
		if v.With != nil {
			add(v.With)
		}
	case *FromClause:
		add(v.Source)
		for _, j := range v.Joins {
			add(j)
		}
	case *Join:
		add(v.Right, v.Condition)
	case *DerivedTable:
		add(v.Body)
	case *TableFunc:
		if v.Call != nil {
			add(v.Call)
		}
	case *ParenJoin:
		if v.From != nil {
			add(v.From)
		}
	case *BinaryExpr:
		add(v.Left, v.Right)
	case *UnaryExpr:
		add(v.Expr)
	case *FuncCall:
		addExprs(v.Args)
		addOrder(v.OrderBy)
		addOrder(v.WithinGroup)
		add(v.Filter)
		addWindow(v.Window)
	case *CaseExpr:
		add(v.Operand)
		for _, w := range v.Whens {
			add(w.Condition, w.Result)
		}
		add(v.Else)
	case *CastExpr:
		add(v.Expr)
	case *InExpr:
		add(v.Expr)
		addExprs(v.Values)
		add(v.Query)
	case *BetweenExpr:
		add(v.Expr, v.Low, v.High)
	case *IsExpr:
		add(v.Expr, v.Right)
	case *LikeExpr:
		add(v.Expr, v.Pattern, v.Escape)
	case *ExistsExpr:
		add(v.Query)
	case *SubqueryExpr:
		add(v.Query)
	case *ParenExpr:
		addExprs(v.Exprs)
	case *IndexExpr:
		add(v.Expr, v.Index)
	case *ArrayExpr:
		addExprs(v.Elems)
		add(v.Query)
	}
	return out
}
