package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/schema"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	XML   bool
	Hash  bool
	Table string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the schema context sent to the model",
		Long: `Introspect the target database and show the enriched schema context:
tables, columns, inferred roles and documentation from the docs file.`,
		Example: `  # Tables and columns with inferred roles
  lumen schema

  # The exact XML the model sees
  lumen schema --xml

  # One table
  lumen schema --table orders`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.XML, "xml", false, "Print the prompt XML")
	cmd.Flags().BoolVar(&opts.Hash, "hash", false, "Print only the schema hash")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Show a single table")
	cmd.MarkFlagsMutuallyExclusive("xml", "hash")

	return cmd
}

func runSchema(cmd *cobra.Command, opts *SchemaOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, NeedDatabase)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cc.Renderer

	res := cc.Schema.Refresh(cmd.Context())
	if !res.OK() {
		r.Diagnostics(res.Diagnostics)
		return ErrReported
	}
	sc := res.Value

	if opts.Table != "" {
		t, ok := sc.Table(opts.Table)
		if !ok {
			return fmt.Errorf("table %q not found", opts.Table)
		}
		filtered := *sc
		filtered.Tables = []schema.Table{*t}
		sc = &filtered
	}

	switch {
	case opts.Hash:
		r.Println(sc.Hash)
	case opts.XML:
		r.Println(schema.XML(sc))
	case r.JSON:
		return r.Encode(sc)
	default:
		renderSchema(r, sc)
	}
	r.Diagnostics(res.Diagnostics)
	return nil
}

func renderSchema(r *Renderer, sc *schema.Context) {
	r.Println(r.Styles.Title.Render(sc.Database))
	r.Println(r.Styles.Muted.Render(fmt.Sprintf("%d tables · %s · %s", len(sc.Tables), sc.Hash, sc.IntrospectedAt)))

	for _, t := range sc.Tables {
		r.Println()
		header := fmt.Sprintf("%s (%d rows)", t.Name, t.RowCount)
		if t.Description != "" {
			header += " - " + t.Description
		}
		r.Println(r.Styles.Title.Render(header))

		tw := table.NewWriter()
		tw.SetOutputMirror(r.Out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Column", "Type", "Role", "Details"})
		for _, col := range t.Columns {
			tw.AppendRow(table.Row{col.Name, col.Type, string(col.Role), columnDetails(col)})
		}
		tw.Render()
	}
}

func columnDetails(col schema.Column) string {
	var parts []string
	if col.PrimaryKey {
		parts = append(parts, "pk")
	}
	if col.ForeignKey != "" {
		parts = append(parts, "→ "+col.ForeignKey)
	}
	if col.SuggestedAgg != "" {
		parts = append(parts, col.SuggestedAgg)
	}
	if col.Min != "" || col.Max != "" {
		parts = append(parts, fmt.Sprintf("%s..%s", col.Min, col.Max))
	}
	if len(col.Samples) > 0 {
		samples := col.Samples
		if len(samples) > 3 {
			samples = samples[:3]
		}
		parts = append(parts, strings.Join(samples, ", "))
	}
	if col.Description != "" {
		parts = append(parts, col.Description)
	}
	return strings.Join(parts, "; ")
}
