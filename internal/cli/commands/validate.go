package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/cli/config"
	"github.com/leapstack-labs/lumen/internal/sqlguard"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [SQL]",
		Short: "Check whether SQL is a safe read-only query",
		Long: `Run the read-only safety checks applied to every query before execution.

Exactly one SELECT statement (optionally with CTEs or set operations) is
accepted. Anything that writes, changes schema or runs more than one
statement is rejected with a diagnostic.`,
		Example: `  lumen validate "SELECT * FROM orders"
  lumen validate --file query.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := validateInput(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}
			return runValidate(cmd, sql)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from a file (- for stdin)")

	return cmd
}

func validateInput(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass SQL as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		return string(data), err
	}
	return "", fmt.Errorf("no SQL given")
}

func runValidate(cmd *cobra.Command, sql string) error {
	// validate runs without a project config; honor --output directly.
	format := ""
	if cfg := config.GetCurrentConfig(); cfg != nil {
		format = cfg.OutputFormat
	}
	if f := cmd.Flag("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	r := NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), format)

	res := sqlguard.Validate(sql)
	if r.JSON {
		if err := r.Encode(map[string]any{"valid": res.OK(), "sql": strings.TrimSpace(res.Value), "diagnostics": res.Diagnostics}); err != nil {
			return err
		}
	} else if res.OK() {
		r.Println(r.Styles.Success.Render("✓ valid read-only query"))
	} else {
		r.Diagnostics(res.Diagnostics)
	}
	if !res.OK() {
		return ErrReported
	}
	return nil
}
