package commands

import (
	"context"

	"github.com/davack/slate/internal/engine"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/resolver"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/spf13/cobra"
)

var (
	editTitle       string
	editDescription string
	editComment     string
	editLabel       string
)

var editCmd = &cobra.Command{
	Use:   "edit <item-id>",
	Short: "Edit an item's fields",
	Long: `Update an item's title, description, comment or label.

Only the fields that actually changed are written; a label change notifies
project members as a status change.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&editDescription, "description", "", "New description")
	editCmd.Flags().StringVar(&editComment, "comment", "", "New internal comment")
	editCmd.Flags().StringVar(&editLabel, "label", "", "New label (approved|needs_revision|ready_for_approval|scheduled)")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cc, err := newCmdContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	itemID, err := resolver.ResolveItemID(cc.engine.Registry(), args[0])
	if err != nil {
		return printer.Error("Cannot resolve item", err.Error(), nil)
	}

	current := cc.engine.Registry().Get(itemID)
	if current == nil {
		return printer.Error("Unknown item", itemID, nil)
	}

	input := engine.EditInput{
		Title:       current.Title,
		Description: current.Description,
		Comment:     current.Comment,
		Label:       current.Label,
		Attachments: current.Attachments,
	}
	if cmd.Flags().Changed("title") {
		input.Title = editTitle
	}
	if cmd.Flags().Changed("description") {
		input.Description = editDescription
	}
	if cmd.Flags().Changed("comment") {
		input.Comment = editComment
	}
	if cmd.Flags().Changed("label") {
		input.Label = boardstore.Label(editLabel)
	}

	result := cc.engine.SaveEdits(ctx, itemID, input)
	if !result.OK {
		return printer.Error("Edit failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	return nil
}
