package adapter

// TableSet accumulates table metadata from row-oriented catalog queries,
// keeping tables in first-seen order.
type TableSet struct {
	order  []string
	tables map[string]*TableMeta
}

// NewTableSet returns an empty set.
func NewTableSet() *TableSet {
	return &TableSet{tables: make(map[string]*TableMeta)}
}

// Ensure returns the table with the given name, creating it if needed.
func (s *TableSet) Ensure(schema, name string) *TableMeta {
	if t, ok := s.tables[name]; ok {
		return t
	}
	t := &TableMeta{Schema: schema, Name: name}
	s.tables[name] = t
	s.order = append(s.order, name)
	return t
}

// Lookup returns the named table if it has been seen.
func (s *TableSet) Lookup(name string) (*TableMeta, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// AddColumn appends a column to the named table.
func (s *TableSet) AddColumn(schema, table string, col ColumnMeta) {
	t := s.Ensure(schema, table)
	t.Columns = append(t.Columns, col)
}

// AddPrimaryKey records a primary key column for a known table.
func (s *TableSet) AddPrimaryKey(table, column string) {
	if t, ok := s.tables[table]; ok {
		t.PrimaryKey = append(t.PrimaryKey, column)
	}
}

// AddForeignKey records a foreign key for a known table.
func (s *TableSet) AddForeignKey(table string, fk ForeignKey) {
	if t, ok := s.tables[table]; ok {
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
}

// List returns the tables in first-seen order.
func (s *TableSet) List() []TableMeta {
	out := make([]TableMeta, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.tables[name])
	}
	return out
}
