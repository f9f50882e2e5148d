package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davack/slate/internal/config"
	"github.com/davack/slate/internal/engine"
	"github.com/davack/slate/internal/fanout"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live board changes for the current channel",
	Long: `Subscribe to the channel and print a line for every applied snapshot.

The stream stays quiet while a local move is settling, so your own drags
never echo back as remote changes. Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	channel := boardstore.Channel(cfg.Channel)
	if channelFlag != "" {
		channel = boardstore.Channel(channelFlag)
		if err := channel.Validate(); err != nil {
			return err
		}
	}

	client, err := boardstore.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Project)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach document store at %s: %w", cfg.Redis.Addr, err)
	}

	user, err := resolveUser(cfg)
	if err != nil {
		return err
	}

	hooks := engine.Hooks{
		OnApply: func(snap *boardstore.Snapshot) {
			scheduled, pooled := 0, 0
			for _, item := range snap.Items {
				if item.Location == boardstore.LocationPool {
					pooled++
				} else {
					scheduled++
				}
			}
			printer.Event("%s  snapshot applied: %d scheduled, %d in pool\n",
				time.Now().Format("15:04:05"), scheduled, pooled)
		},
		OnError: func(err error) {
			printer.Warning("subscription error: %v (local state cleared)\n", err)
		},
		OnItemDeleted: func(itemID string) {
			printer.Event("item %s deleted\n", itemID)
		},
	}

	session := engine.NewSession(client, user, fanout.New(client, 0), engineOptions(cfg), hooks)
	defer session.Close()

	if _, err := session.Use(ctx, channel); err != nil {
		return err
	}

	printer.Info("Watching channel '%s' on project '%s'. Ctrl+C to stop.\n", channel, cfg.Project)

	<-ctx.Done()
	printer.Info("\nStopped.\n")
	return nil
}
