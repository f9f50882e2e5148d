package commands

import (
	"context"

	"github.com/davack/slate/internal/engine"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/resolver"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:   "move <item-id> <slot|pool>",
	Short: "Move an item onto a calendar slot or back to the pool",
	Long: `Move an item onto a calendar slot or back to the holding pool.

Slot keys use the form year-month-day with a zero-indexed month:
2025-0-14 is the 14th of January 2025. The item id may be a unique
prefix of at least 6 characters.

Examples:
  slate move 3f2a91 2025-0-14
  slate move 3f2a91 pool`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
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

	destination := args[1]

	var result engine.Result
	if destination == boardstore.LocationPool {
		result = cc.engine.MoveToPool(ctx, itemID)
	} else {
		result = cc.engine.MoveToSlot(ctx, itemID, destination)
	}
	if !result.OK {
		return printer.Error("Move failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	return nil
}
