package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mirrorlab/codesync/internal/client/config"
	"github.com/mirrorlab/codesync/internal/utils"
)

var defaultLogFile = filepath.Join(filepath.Dir(config.DefaultConfigPath), "logs", "client.log")

func main() {
	verbose := os.Getenv("CODESYNC_DEBUG") != ""
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	closer, err := utils.SetupLogger(level, defaultLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd, syncCmd, statusCmd, versionCmd)
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
}

func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w (run `codesync init` first)", path, err)
	}
	return cfg, nil
}
