package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docsYAML = `
notes: |
  Revenue is recognised at shipping.
models:
  - name: orders
    description: Customer orders
    columns:
      - name: amount
        description: Order total in EUR
      - name: ghost
        description: Not a real column
  - name: invoices
    description: Not in the database
sources:
  - name: crm
    tables:
      - name: customers
        columns:
          - name: region
            description: Sales region
`

func TestParseDocs(t *testing.T) {
	d, err := ParseDocs([]byte(docsYAML))
	require.NoError(t, err)

	assert.Equal(t, "Revenue is recognised at shipping.\n", d.Notes)
	require.Len(t, d.Models, 2)
	assert.Equal(t, "orders", d.Models[0].Name)
	require.Len(t, d.Sources, 1)
	assert.Equal(t, "customers", d.Sources[0].Tables[0].Name)
}

func TestDocs_Apply(t *testing.T) {
	d, err := ParseDocs([]byte(docsYAML))
	require.NoError(t, err)

	c := &Context{Tables: []Table{
		{Name: "orders", Description: "db comment", Columns: []Column{{Name: "id"}, {Name: "amount", Description: "db comment"}}},
		{Name: "customers", Description: "kept", Columns: []Column{{Name: "region"}}},
	}}

	got := d.Apply(c)
	assert.Equal(t, "Customer orders", got.Tables[0].Description)
	assert.Empty(t, got.Tables[0].Columns[0].Description)
	assert.Equal(t, "Order total in EUR", got.Tables[0].Columns[1].Description)
	assert.Equal(t, "kept", got.Tables[1].Description)
	assert.Equal(t, "Sales region", got.Tables[1].Columns[0].Description)
	assert.Equal(t, "Revenue is recognised at shipping.\n", got.AugmentedDocs)

	assert.Equal(t, "db comment", c.Tables[0].Description, "input untouched")
}

func TestDocs_ApplyNil(t *testing.T) {
	var d *Docs
	c := &Context{Database: "shop", Tables: []Table{{Name: "t"}}}
	assert.Equal(t, c, d.Apply(c))
}

func TestDocs_NotesTruncated(t *testing.T) {
	d := &Docs{Notes: strings.Repeat("x", maxNotes+10)}
	got := d.Apply(&Context{})
	assert.True(t, strings.HasSuffix(got.AugmentedDocs, "\n... (truncated)"))
	assert.Len(t, got.AugmentedDocs, maxNotes+len("\n... (truncated)"))
}

func TestLoadDocs(t *testing.T) {
	dir := t.TempDir()

	d, err := LoadDocs(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = LoadDocs("")
	require.NoError(t, err)
	assert.Nil(t, d)

	path := filepath.Join(dir, "lumen-docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(docsYAML), 0o600))
	d, err = LoadDocs(path)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, d.Models, 2)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("models: [unclosed"), 0o600))
	_, err = LoadDocs(bad)
	assert.Error(t, err)
}
