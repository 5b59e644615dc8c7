package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/state"
)

// NewCellsCommand creates the cells command group.
func NewCellsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Browse and manage saved cells",
		Long:  `List conversations and the cells saved in the state store.`,
	}

	cmd.AddCommand(newCellsListCommand())
	cmd.AddCommand(newCellsShowCommand())
	cmd.AddCommand(newCellsDeleteCommand())
	cmd.AddCommand(newCellsTitleCommand())

	return cmd
}

func newCellsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [conversation-id]",
		Short: "List conversations, or the cells of one conversation",
		Example: `  lumen cells list
  lumen cells list conv_1a2b3c4d5e6f`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedStore)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 0 {
				convs, err := cc.Store.ListConversations(cmd.Context())
				if err != nil {
					return err
				}
				return cc.Renderer.Conversations(convs)
			}
			cells, err := cc.Store.LatestForConversation(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			if len(cells) == 0 {
				return fmt.Errorf("conversation %s has no cells", args[0])
			}
			return cc.Renderer.Cells(cells)
		},
	}
}

func newCellsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <cell-id>",
		Short: "Show a saved cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedStore)
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := cc.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return cellError(args[0], err)
			}
			return cc.Renderer.Cell(c)
		},
	}
}

func newCellsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <cell-id>",
		Short: "Delete a saved cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedStore)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Store.Delete(cmd.Context(), args[0]); err != nil {
				return cellError(args[0], err)
			}
			cc.Renderer.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newCellsTitleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "title <cell-id> <title>",
		Short: "Rename a saved cell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedStore)
			if err != nil {
				return err
			}
			defer cleanup()

			title := args[1]
			c, err := cc.Store.Update(cmd.Context(), args[0], state.Patch{Title: &title})
			if err != nil {
				return cellError(args[0], err)
			}
			if cc.Renderer.JSON {
				return cc.Renderer.Encode(c)
			}
			cc.Renderer.Printf("%s: %s\n", c.ID, c.Title)
			return nil
		},
	}
}

func cellError(id string, err error) error {
	if errors.Is(err, state.ErrCellNotFound) {
		return fmt.Errorf("cell %s not found\nHint: list cells with `lumen cells list <conversation-id>`", id)
	}
	return err
}
