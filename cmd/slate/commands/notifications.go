package commands

import (
	"context"
	"sort"
	"time"

	"github.com/davack/slate/internal/filter"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	notificationsMarkRead bool
	notificationsSince    string
	notificationsUntil    string
	notificationsType     string
	notificationsActor    string
	notificationsUnread   bool
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Show your notifications for this project",
	Long: `Show your notifications for this project, newest first.

Bound the listing with --since and --until, which accept durations relative
to now ("1h", "30m") or RFC3339 timestamps. Narrow it further by type glob
(--type "c*"), acting user (--actor) or unread state (--unread).`,
	RunE: runNotifications,
}

func init() {
	notificationsCmd.Flags().BoolVar(&notificationsMarkRead, "mark-read", false, "Mark all notifications as read")
	notificationsCmd.Flags().StringVar(&notificationsSince, "since", "", "Only show notifications after this time")
	notificationsCmd.Flags().StringVar(&notificationsUntil, "until", "", "Only show notifications before this time")
	notificationsCmd.Flags().StringVar(&notificationsType, "type", "", "Glob pattern for the notification type (comment, approval, status, edit)")
	notificationsCmd.Flags().StringVar(&notificationsActor, "actor", "", "Only show notifications from this user id")
	notificationsCmd.Flags().BoolVar(&notificationsUnread, "unread", false, "Only show unread notifications")
	rootCmd.AddCommand(notificationsCmd)
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cc, err := newCmdContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	sinceMS, untilMS, err := timespec.ParseRange(notificationsSince, notificationsUntil)
	if err != nil {
		return err
	}
	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		TypeGlob:         notificationsType,
		ActorID:          notificationsActor,
		UnreadOnly:       notificationsUnread,
	}

	all, err := cc.client.ListNotifications(ctx, cc.user.ID)
	if err != nil {
		return printer.Error("Cannot load notifications", err.Error(), nil)
	}

	records := criteria.Apply(all)
	if len(records) == 0 {
		printer.Info("No notifications.\n")
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TimestampMs > records[j].TimestampMs
	})

	unread := 0
	for _, rec := range records {
		marker := " "
		if !rec.Read {
			marker = "*"
			unread++
		}
		when := time.UnixMilli(rec.TimestampMs).Format("Jan 2 15:04")
		printer.Printf("%s %s  %s\n", marker, when, rec.Message)
		if rec.LastComment != "" {
			printer.Printf("     > %s\n", rec.LastComment)
		}
	}
	printer.Info("\n%d notifications, %d unread\n", len(records), unread)

	if notificationsMarkRead && unread > 0 {
		if err := cc.client.MarkAllNotificationsRead(ctx, cc.user.ID); err != nil {
			return printer.Error("Cannot mark notifications read", err.Error(), nil)
		}
		printer.Success("Marked %d notifications as read\n", unread)
	}

	return nil
}
