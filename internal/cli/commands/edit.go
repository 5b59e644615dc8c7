package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// EditOptions holds options for the edit command.
type EditOptions struct {
	SQL  string
	File string
}

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	opts := &EditOptions{}

	cmd := &cobra.Command{
		Use:   "edit <cell-id>",
		Short: "Re-run a cell with your own SQL",
		Long: `Execute hand-written SQL in place of a cell's generated query.

The SQL passes the same safety checks as generated queries and is run once,
without correction. The result is saved as a new cell that points at the
edited one.`,
		Example: `  lumen edit cell_3f2a9c1b --sql "SELECT region, SUM(amount) FROM orders GROUP BY 1"
  lumen edit cell_3f2a9c1b --file query.sql
  cat query.sql | lumen edit cell_3f2a9c1b --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readEditSQL(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}
			return runEdit(cmd, args[0], sql)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "Replacement SQL")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read the replacement SQL from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("sql", "file")
	cmd.MarkFlagsOneRequired("sql", "file")

	return cmd
}

func readEditSQL(stdin io.Reader, opts *EditOptions) (string, error) {
	if opts.File == "" {
		return opts.SQL, nil
	}
	var (
		data []byte
		err  error
	)
	if opts.File == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.File)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read SQL: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runEdit(cmd *cobra.Command, cellID, sql string) error {
	cc, cleanup, err := NewCommandContext(cmd, NeedAll)
	if err != nil {
		return err
	}
	defer cleanup()

	res := withProgress(cmd.Context(), cc.Renderer, cc.Logger, func(ctx context.Context, emit agent.Emitter) core.Result[*cell.Cell] {
		return cc.Agent.RunEdited(ctx, agent.EditRequest{CellID: cellID, SQL: sql}, emit)
	})
	return finish(cc.Renderer, res)
}
