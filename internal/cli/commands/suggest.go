package commands

import (
	"github.com/spf13/cobra"
)

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest questions to ask about the database",
		Long: `Generate starter questions from the schema context.

Suggestions are cached per schema hash; they are regenerated only when the
schema changes or --refresh is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedAll)
			if err != nil {
				return err
			}
			defer cleanup()

			snap := cc.Schema.Refresh(cmd.Context())
			if !snap.OK() {
				cc.Renderer.Diagnostics(snap.Diagnostics)
				return ErrReported
			}

			res := cc.Suggest.Suggestions(cmd.Context(), snap.Value, refresh)
			if !res.OK() {
				cc.Renderer.Diagnostics(res.Diagnostics)
				return ErrReported
			}
			return cc.Renderer.Suggestions(res.Value)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore cached suggestions")

	return cmd
}
