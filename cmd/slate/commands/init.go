package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/davack/slate/internal/config"
	"github.com/davack/slate/internal/identity"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	initProject string
	initUserID  string
	initName    string
	initRedis   string
	initSecret  string
	forceInit   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a Slate project",
	Long: `Initialize a Slate project: writes slate.yml and seeds the project
document in the store with the current user as the first member.

Use --force to overwrite an existing slate.yml.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProject, "project", "", "Project identifier (required)")
	initCmd.Flags().StringVar(&initUserID, "user", "", "Your user id (required)")
	initCmd.Flags().StringVar(&initName, "name", "", "Your display name (defaults to user id)")
	initCmd.Flags().StringVar(&initRedis, "redis", "localhost:6379", "Document store address")
	initCmd.Flags().StringVar(&initSecret, "auth-secret", "", "Mint a signed user token with this secret instead of a static identity")
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing slate.yml")
	initCmd.MarkFlagRequired("project")
	initCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return printer.Error(
				fmt.Sprintf("%s already exists", configPath),
				"Refusing to overwrite an existing project configuration.",
				[]string{"Use --force to overwrite it."},
			)
		}
	}

	if initName == "" {
		initName = initUserID
	}

	cfg := &config.SlateConfig{
		Version: "1.0",
		Project: initProject,
		Redis:   config.RedisConfig{Addr: initRedis},
		User:    config.UserConfig{ID: initUserID, Name: initName},
	}
	if initSecret != "" {
		token, err := identity.IssueToken(identity.User{ID: initUserID, Name: initName}, []byte(initSecret))
		if err != nil {
			return fmt.Errorf("failed to mint user token: %w", err)
		}
		cfg.User = config.UserConfig{Token: token, AuthSecret: initSecret}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := boardstore.NewClient(&redis.Options{Addr: initRedis}, initProject)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Cannot reach the document store",
			fmt.Sprintf("No Redis server answered at %s.", initRedis),
			[]string{"Start Redis, or pass --redis with the right address."},
		)
	}

	// Seed the project document; re-running init on an existing project
	// only ensures membership.
	project, err := client.GetProject(ctx)
	if boardstore.IsNotFound(err) {
		project = &boardstore.Project{
			ID:        initProject,
			Name:      initProject,
			Members:   []boardstore.Member{{ID: initUserID, Name: initName}},
			MemberIDs: []string{initUserID},
		}
		if err := client.CreateProject(ctx, project); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		if err := client.AddMember(ctx, boardstore.Member{ID: initUserID, Name: initName}); err != nil {
			return err
		}
	}

	if err := writeConfig(cfg); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	printer.Success("Project '%s' initialized\n", initProject)
	printer.Info("  Config:  %s\n", configPath)
	printer.Info("  Store:   %s\n", initRedis)
	printer.Info("  Member:  %s (%s)\n", initName, initUserID)
	printer.Info("\nNext: slate create --title \"My first post\" --type photo --label ready_for_approval --media <url>\n")

	return nil
}

func writeConfig(cfg *config.SlateConfig) error {
	userSection := fmt.Sprintf("user:\n  id: %s\n  name: %s", cfg.User.ID, cfg.User.Name)
	if cfg.User.Token != "" {
		userSection = fmt.Sprintf("user:\n  token: %s\n  auth_secret: %s", cfg.User.Token, cfg.User.AuthSecret)
	}

	content := fmt.Sprintf(`version: "1.0"
project: %s
channel: %s

redis:
  addr: %s

%s

# engine:
#   debounce_ms: 50
#   settle_ms: 400
#   approval_guard_ms: 1000

# media:
#   endpoint: localhost:9000
#   bucket: slate-media
#   access_key: minioadmin
#   secret_key: minioadmin
`, cfg.Project, cfg.Channel, cfg.Redis.Addr, userSection)

	return os.WriteFile(configPath, []byte(content), 0o644)
}
