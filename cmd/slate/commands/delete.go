package commands

import (
	"context"

	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/resolver"
	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Delete an item from the board",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if !deleteForce {
		item := cc.engine.Registry().Get(itemID)
		title := itemID
		if item != nil && item.Title != "" {
			title = item.Title
		}
		printer.Warning("About to delete %q. Re-run with --force to confirm.\n", title)
		return nil
	}

	result := cc.engine.Delete(ctx, itemID)
	if !result.OK {
		return printer.Error("Delete failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	return nil
}
