package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/davack/slate/internal/printer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listPoolOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items on the current channel",
	Long: `List the channel's content: scheduled items grouped by calendar slot,
followed by the holding pool ordered by most recently moved.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listPoolOnly, "pool", false, "Show only the holding pool")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cc, err := newCmdContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	reg := cc.engine.Registry()

	if !listPoolOnly {
		groups := reg.SlotGroups()
		if len(groups) > 0 {
			slots := make([]string, 0, len(groups))
			for slot := range groups {
				slots = append(slots, slot)
			}
			sort.Strings(slots)

			printer.Info("Scheduled (%s)\n", cc.engine.Channel())
			table := tablewriter.NewTable(os.Stdout)
			table.Header("Slot", "ID", "Title", "Label", "Type")
			for _, slot := range slots {
				for _, item := range groups[slot] {
					table.Append([]string{slot, shortID(item.ID), item.Title, string(item.Label), string(item.ContentType)})
				}
			}
			table.Render()
			fmt.Println()
		}
	}

	pool := reg.PoolItems()
	printer.Info("Pool (%d items)\n", len(pool))
	if len(pool) == 0 {
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ID", "Title", "Label", "Type", "Media")
	for _, item := range pool {
		media := "yes"
		if item.MediaURL == "" {
			media = "-"
		}
		table.Append([]string{shortID(item.ID), item.Title, string(item.Label), string(item.ContentType), media})
	}
	table.Render()

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
