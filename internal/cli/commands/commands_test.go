package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/cli/config"
	"github.com/leapstack-labs/lumen/internal/narrative"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/pkg/core"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewAskCommand(), "ask <question>", []string{"conversation", "parent", "continue"}},
		{NewEditCommand(), "edit <cell-id>", []string{"sql", "file"}},
		{NewValidateCommand(), "validate [SQL]", []string{"file"}},
		{NewSchemaCommand(), "schema", []string{"xml", "hash", "table"}},
		{NewSuggestCommand(), "suggest", []string{"refresh"}},
		{NewServeCommand(), "serve", []string{"port", "open", "watch"}},
		{NewREPLCommand(), "repl", nil},
		{NewCellsCommand(), "cells", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestCellsCommand_Subcommands(t *testing.T) {
	cmd := NewCellsCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "delete", "title"}, names)
}

func TestEditCommand_RequiresSQL(t *testing.T) {
	cmd := NewEditCommand()
	cmd.SetArgs([]string{"cell_1"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql")
}

func TestReadEditSQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("  SELECT 1\n"), 0600))

	sql, err := readEditSQL(nil, &EditOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	sql, err = readEditSQL(bytes.NewBufferString("SELECT 2\n"), &EditOptions{File: "-"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)

	sql, err = readEditSQL(nil, &EditOptions{SQL: "SELECT 3"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", sql)

	_, err = readEditSQL(nil, &EditOptions{File: filepath.Join(t.TempDir(), "missing.sql")})
	assert.Error(t, err)
}

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidateCommand(t *testing.T) {
	config.ResetConfig()

	t.Run("valid", func(t *testing.T) {
		out, _, err := execute(t, NewValidateCommand(), "SELECT region, COUNT(*) FROM customers GROUP BY region")
		require.NoError(t, err)
		assert.Contains(t, out, "valid read-only query")
	})

	t.Run("rejected", func(t *testing.T) {
		_, errOut, err := execute(t, NewValidateCommand(), "DROP TABLE customers")
		assert.ErrorIs(t, err, ErrReported)
		assert.Contains(t, errOut, core.CodeValidationError)
	})

	t.Run("parse error", func(t *testing.T) {
		_, errOut, err := execute(t, NewValidateCommand(), "SELECT FROM WHERE")
		assert.ErrorIs(t, err, ErrReported)
		assert.Contains(t, errOut, core.CodeSQLParseError)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "q.sql")
		require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0600))
		_, _, err := execute(t, NewValidateCommand(), "--file", path)
		assert.NoError(t, err)
	})

	t.Run("no input", func(t *testing.T) {
		_, _, err := execute(t, NewValidateCommand())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrReported)
	})
}

// setupProject loads a config whose state store lives in a temp dir and
// returns the opened store, seeded with two conversations.
func setupProject(t *testing.T, output string) *state.SQLiteStore {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lumen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`target:
  type: sqlite
  database: shop.db
output: `+output+`
`), 0600))
	cfg, err := config.LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	store, err := openStore(cfg.StatePath)
	require.NoError(t, err)
	ctx := context.Background()
	for _, c := range []struct{ conv, id, question string }{
		{"conv_a", "cell_a1", "Revenue by month?"},
		{"conv_a", "cell_a2", "Only 2024"},
		{"conv_b", "cell_b1", "Top customers?"},
	} {
		require.NoError(t, store.Append(ctx, c.conv, &cell.Cell{
			ID:        c.id,
			CreatedAt: "2026-03-01T12:00:00Z",
			Question:  c.question,
			SQL:       &cell.SQL{Query: "SELECT 1", GeneratedBy: cell.GeneratedByLLM},
		}))
	}
	require.NoError(t, store.Close())

	store, err = state.OpenStore(cfg.StatePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCellsCommands(t *testing.T) {
	store := setupProject(t, "json")

	t.Run("list conversations", func(t *testing.T) {
		out, _, err := execute(t, NewCellsCommand(), "list")
		require.NoError(t, err)
		var convs []state.Conversation
		require.NoError(t, json.Unmarshal([]byte(out), &convs))
		assert.Len(t, convs, 2)
	})

	t.Run("list cells", func(t *testing.T) {
		out, _, err := execute(t, NewCellsCommand(), "list", "conv_a")
		require.NoError(t, err)
		var cells []*cell.Cell
		require.NoError(t, json.Unmarshal([]byte(out), &cells))
		require.Len(t, cells, 2)
		assert.Equal(t, "cell_a1", cells[0].ID)
	})

	t.Run("list unknown conversation", func(t *testing.T) {
		_, _, err := execute(t, NewCellsCommand(), "list", "conv_missing")
		assert.Error(t, err)
	})

	t.Run("show", func(t *testing.T) {
		out, _, err := execute(t, NewCellsCommand(), "show", "cell_b1")
		require.NoError(t, err)
		assert.Contains(t, out, "Top customers?")
	})

	t.Run("title", func(t *testing.T) {
		_, _, err := execute(t, NewCellsCommand(), "title", "cell_a1", "Monthly revenue")
		require.NoError(t, err)
		c, err := store.Get(context.Background(), "cell_a1")
		require.NoError(t, err)
		assert.Equal(t, "Monthly revenue", c.Title)
	})

	t.Run("delete", func(t *testing.T) {
		_, _, err := execute(t, NewCellsCommand(), "delete", "cell_a2")
		require.NoError(t, err)
		_, err = store.Get(context.Background(), "cell_a2")
		assert.ErrorIs(t, err, state.ErrCellNotFound)
	})

	t.Run("unknown cell", func(t *testing.T) {
		_, _, err := execute(t, NewCellsCommand(), "show", "cell_missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestCellsList_Text(t *testing.T) {
	setupProject(t, "text")

	out, _, err := execute(t, NewCellsCommand(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "conv_a")
	assert.Contains(t, out, "conv_b")
}

func sampleCell() *cell.Cell {
	return &cell.Cell{
		ID:       "cell_1",
		Question: "Customers per region?",
		Context:  cell.Context{ParentCellID: "cell_0"},
		SQL:      &cell.SQL{Query: "SELECT region, COUNT(*) AS n FROM customers GROUP BY 1", GeneratedBy: cell.GeneratedByLLM},
		Result: &cell.Result{
			Columns:     []string{"region", "n"},
			ColumnTypes: []string{"TEXT", "INTEGER"},
			RowCount:    2,
			Rows: []map[string]any{
				{"region": "AMER", "n": 2},
				{"region": "EMEA", "n": nil},
			},
			ExecutionTimeMS: 4,
		},
		Chart: &cell.Chart{Spec: map[string]any{"mark": "bar"}, AutoDetected: true},
		Narrative: &cell.Narrative{
			Text: "AMER has 2 customers.",
			Segments: []narrative.Segment{
				{Text: "AMER has "},
				{Text: "2", RefID: "r1", Source: "n"},
				{Text: " customers."},
			},
		},
		Metadata: cell.Metadata{Model: "gpt-test", RetryCount: 1},
	}
}

func TestRenderer_Cell(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, "text")

	require.NoError(t, r.Cell(sampleCell()))

	text := out.String()
	assert.Contains(t, text, "Customers per region?")
	assert.Contains(t, text, "refines cell_0")
	assert.Contains(t, text, "SELECT region")
	assert.Contains(t, text, "AMER")
	assert.Contains(t, text, "NULL")
	assert.Contains(t, text, "(2 rows)")
	assert.Contains(t, text, "chart: bar (auto-detected)")
	assert.Contains(t, text, "AMER has 2 customers.")
	assert.Contains(t, text, "cell_1 · gpt-test · 1 retries · 4ms")
	assert.Empty(t, errOut.String())
}

func TestRenderer_ResultRowLimit(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &out, false, "text")

	rows := make([]map[string]any, maxDisplayRows+5)
	for i := range rows {
		rows[i] = map[string]any{"n": i}
	}
	r.Result(&cell.Result{Columns: []string{"n"}, RowCount: 100, Rows: rows, Truncated: true})

	assert.Contains(t, out.String(), "(100 rows, 5 not shown, truncated)")
}

func TestFinish(t *testing.T) {
	failed := core.Fail[*cell.Cell](core.Errorf(core.CodeSQLError, "no such table: sales").WithHint("Check table names"))

	t.Run("text failure", func(t *testing.T) {
		var out, errOut bytes.Buffer
		err := finish(NewRendererWithTTY(&out, &errOut, false, "text"), failed)
		assert.ErrorIs(t, err, ErrReported)
		assert.Contains(t, errOut.String(), "[SQL_ERROR] no such table: sales")
		assert.Contains(t, errOut.String(), "hint: Check table names")
	})

	t.Run("json failure", func(t *testing.T) {
		var out bytes.Buffer
		err := finish(NewRendererWithTTY(&out, &out, false, "json"), failed)
		assert.ErrorIs(t, err, ErrReported)
		var body struct {
			Diagnostics []core.Diagnostic `json:"diagnostics"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &body))
		require.Len(t, body.Diagnostics, 1)
		assert.Equal(t, core.CodeSQLError, body.Diagnostics[0].Code)
	})

	t.Run("success", func(t *testing.T) {
		var out bytes.Buffer
		err := finish(NewRendererWithTTY(&out, &out, false, "json"), core.Ok(sampleCell()))
		require.NoError(t, err)
		var c cell.Cell
		require.NoError(t, json.Unmarshal(out.Bytes(), &c))
		assert.Equal(t, "cell_1", c.ID)
	})
}

func TestSessionSecret(t *testing.T) {
	cfg := &config.Config{}
	t.Setenv("LUMEN_SESSION_SECRET", "")
	assert.Equal(t, devSessionSecret, sessionSecret(cfg))

	t.Setenv("LUMEN_SESSION_SECRET", "from-env")
	assert.Equal(t, "from-env", sessionSecret(cfg))

	cfg.UI.SessionSecret = "from-config"
	assert.Equal(t, "from-config", sessionSecret(cfg))
}
