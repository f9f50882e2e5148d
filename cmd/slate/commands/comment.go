package commands

import (
	"context"
	"strings"

	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/resolver"
	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment <item-id> <text>",
	Short: "Add a comment to an item",
	Long: `Append a comment to an item's thread.

Project members are notified; repeated comments by the same author on the
same item within a short window collapse into a single notification.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runComment,
}

func init() {
	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
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

	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return printer.Error("Empty comment", "comment text cannot be blank", nil)
	}

	result := cc.engine.AddComment(ctx, itemID, text)
	if !result.OK {
		return printer.Error("Comment failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	return nil
}
