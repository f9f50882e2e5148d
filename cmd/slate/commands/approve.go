package commands

import (
	"context"

	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/resolver"
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <item-id>",
	Short: "Toggle an item between approved and ready-for-approval",
	Long: `Toggle an item's label between approved and ready_for_approval.

Items marked needs_revision or scheduled are left untouched. Every project
member is notified of the change.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
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

	result := cc.engine.ToggleApproval(ctx, itemID)
	if !result.OK {
		return printer.Error("Approval toggle failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	return nil
}
