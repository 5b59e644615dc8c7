// Package schema builds the schema context handed to the language model:
// introspected tables and columns, inferred column roles, optional
// documentation, an XML rendering for prompts and a content hash.
//
// A Context is an immutable snapshot. It is built once per connection
// event and replaced wholesale when it goes stale; nothing mutates a
// published Context in place.
package schema

// Role classifies how a column is typically used in analytical queries.
type Role string

// Column roles.
const (
	RoleKey              Role = "key"
	RoleTimeDimension    Role = "time_dimension"
	RoleCategorical      Role = "categorical"
	RoleMeasureCandidate Role = "measure_candidate"
	RoleOther            Role = "other"
)

// Context is the enriched schema of one database.
type Context struct {
	Database       string  `json:"database"`
	Schema         string  `json:"schema,omitempty"`
	IntrospectedAt string  `json:"introspected_at"`
	Tables         []Table `json:"tables"`

	// AugmentedDocs is free-form documentation rendered after the tables.
	AugmentedDocs string `json:"augmented_docs,omitempty"`

	// Hash identifies the content of the context; see Hash.
	Hash string `json:"hash,omitempty"`
}

// Table is one table or view.
type Table struct {
	Name        string   `json:"name"`
	RowCount    int64    `json:"row_count"`
	Description string   `json:"description,omitempty"`
	Columns     []Column `json:"columns"`
}

// Column is one column with its inferred role and profiling hints.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description,omitempty"`
	Role        Role   `json:"role"`

	PrimaryKey bool   `json:"primary_key,omitempty"`
	ForeignKey string `json:"foreign_key,omitempty"` // "table.column"

	// DistinctCount is nil when cardinality was not measured.
	DistinctCount *int64   `json:"distinct_count,omitempty"`
	Samples       []string `json:"samples,omitempty"`
	Min           string   `json:"min,omitempty"`
	Max           string   `json:"max,omitempty"`

	// SuggestedAgg is set for measure candidates: "sum" or "avg".
	SuggestedAgg string `json:"suggested_agg,omitempty"`
}

// Table returns the named table.
func (c *Context) Table(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// Roles maps column names to roles across all tables. When a name occurs
// in several tables the first table wins.
func (c *Context) Roles() map[string]Role {
	roles := make(map[string]Role)
	if c == nil {
		return roles
	}
	for _, t := range c.Tables {
		for _, col := range t.Columns {
			if _, ok := roles[col.Name]; !ok {
				roles[col.Name] = col.Role
			}
		}
	}
	return roles
}

// clone returns a deep copy so enrichment never touches its input.
func (c *Context) clone() *Context {
	out := *c
	out.Tables = make([]Table, len(c.Tables))
	for i, t := range c.Tables {
		t.Columns = append([]Column(nil), t.Columns...)
		for j := range t.Columns {
			col := &t.Columns[j]
			col.Samples = append([]string(nil), col.Samples...)
			if col.DistinctCount != nil {
				n := *col.DistinctCount
				col.DistinctCount = &n
			}
		}
		out.Tables[i] = t
	}
	return &out
}
