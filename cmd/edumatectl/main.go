package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/EduMate/internal/config"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "edumatectl",
	Short:         "EduMate administration tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRankCmd())
	rootCmd.AddCommand(newResetPasswordCmd())
	rootCmd.AddCommand(newSeedCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore connects using the configured database URL. Tests replace it.
var openStore = func(ctx context.Context) (*store.PostgresStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is not configured")
	}
	return store.NewPostgresStore(ctx, cfg.Database.URL)
}
