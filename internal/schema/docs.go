package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxNotes bounds the free-form notes copied into the prompt.
const maxNotes = 5000

// Docs is a hand-written documentation file for a database, in a dbt-like
// layout:
//
//	notes: |
//	  Revenue is recognised when an order ships.
//	models:
//	  - name: orders
//	    description: One row per order
//	    columns:
//	      - name: amount
//	        description: Order total in EUR
//	sources:
//	  - name: raw
//	    tables:
//	      - name: events
type Docs struct {
	Notes   string      `yaml:"notes"`
	Models  []TableDoc  `yaml:"models"`
	Sources []SourceDoc `yaml:"sources"`
}

// SourceDoc groups table docs under a source name.
type SourceDoc struct {
	Name   string     `yaml:"name"`
	Tables []TableDoc `yaml:"tables"`
}

// TableDoc documents one table.
type TableDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Columns     []ColumnDoc `yaml:"columns"`
}

// ColumnDoc documents one column.
type ColumnDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadDocs reads a docs file. A missing file is not an error and yields nil.
func LoadDocs(path string) (*Docs, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read docs file %s: %w", path, err)
	}
	return ParseDocs(data)
}

// ParseDocs decodes docs from YAML.
func ParseDocs(data []byte) (*Docs, error) {
	var d Docs
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse docs: %w", err)
	}
	return &d, nil
}

// tables returns model and source table docs keyed by table name.
// Later entries override earlier ones.
func (d *Docs) tables() map[string]TableDoc {
	out := make(map[string]TableDoc)
	for _, t := range d.Models {
		if t.Name != "" {
			out[t.Name] = t
		}
	}
	for _, s := range d.Sources {
		for _, t := range s.Tables {
			if t.Name != "" {
				out[t.Name] = t
			}
		}
	}
	return out
}

// Apply returns a copy of c with documented descriptions taking precedence
// over database comments, and the notes set as augmented docs. Docs for
// tables or columns that do not exist are ignored.
func (d *Docs) Apply(c *Context) *Context {
	if c == nil {
		return nil
	}
	out := c.clone()
	if d == nil {
		return out
	}

	byTable := d.tables()
	for i := range out.Tables {
		t := &out.Tables[i]
		doc, ok := byTable[t.Name]
		if !ok {
			continue
		}
		if doc.Description != "" {
			t.Description = doc.Description
		}
		for _, cd := range doc.Columns {
			if cd.Description == "" {
				continue
			}
			for j := range t.Columns {
				if t.Columns[j].Name == cd.Name {
					t.Columns[j].Description = cd.Description
				}
			}
		}
	}

	notes := d.Notes
	if r := []rune(notes); len(r) > maxNotes {
		notes = string(r[:maxNotes]) + "\n... (truncated)"
	}
	out.AugmentedDocs = notes
	return out
}
