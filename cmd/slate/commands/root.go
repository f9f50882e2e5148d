package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath  string
	channelFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "slate",
	Short: "Slate - collaborative content calendar",
	Long: `Slate schedules content items onto a shared calendar and holding pool,
kept in sync across every collaborator in real time.

Each project owns one content collection per channel, backed by a remote
document store that pushes change notifications to all connected clients.
Local mutations apply optimistically and reconcile against remote state;
qualifying activity fans out as notifications to every project member.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "slate.yml", "Path to the project configuration file")
	rootCmd.PersistentFlags().StringVar(&channelFlag, "channel", "", "Channel to operate on (overrides config default)")
}
