package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// ErrReported is returned by commands whose failure was already written
// to the output; the root command only sets the exit code.
var ErrReported = errors.New("failure reported")

// AskOptions holds options for the ask command.
type AskOptions struct {
	Conversation string
	Parent       string
	Continue     bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your data",
		Long: `Answer a natural-language question against the configured target.

The question is turned into a read-only SQL query, executed, charted and
summarized. The answer is saved as a cell in the state store so later
questions can build on it.`,
		Example: `  # Start a new conversation
  lumen ask "top 10 customers by revenue"

  # Continue the most recent conversation
  lumen ask --continue "only customers in Europe"

  # Refine a specific cell
  lumen ask --parent cell_3f2a9c1b "show it by month instead"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Conversation, "conversation", "c", "", "Conversation to add the answer to")
	cmd.Flags().StringVarP(&opts.Parent, "parent", "p", "", "Cell to refine")
	cmd.Flags().BoolVar(&opts.Continue, "continue", false, "Continue the most recently updated conversation")
	cmd.MarkFlagsMutuallyExclusive("conversation", "continue")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts *AskOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, NeedAll)
	if err != nil {
		return err
	}
	defer cleanup()

	req := agent.AskRequest{
		Question:       question,
		ConversationID: opts.Conversation,
		ParentCellID:   opts.Parent,
	}
	if opts.Continue {
		convs, err := cc.Store.ListConversations(cmd.Context())
		if err != nil {
			return err
		}
		if len(convs) > 0 {
			req.ConversationID = convs[0].ID
		}
	}

	res := withProgress(cmd.Context(), cc.Renderer, cc.Logger, func(ctx context.Context, emit agent.Emitter) core.Result[*cell.Cell] {
		return cc.Agent.Ask(ctx, req, emit)
	})
	return finish(cc.Renderer, res)
}

// finish renders a pipeline outcome. Failures print their diagnostics and
// return ErrReported.
func finish(r *Renderer, res core.Result[*cell.Cell]) error {
	if res.OK() && res.Value != nil {
		return r.Cell(res.Value)
	}
	if r.JSON {
		if err := r.Encode(map[string]any{"diagnostics": res.Diagnostics}); err != nil {
			return err
		}
		return ErrReported
	}
	if len(res.Diagnostics) == 0 {
		return fmt.Errorf("run failed without diagnostics")
	}
	r.Diagnostics(res.Diagnostics)
	return ErrReported
}
