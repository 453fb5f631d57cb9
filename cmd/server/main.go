package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mirrorlab/codesync/internal/server"
	"github.com/mirrorlab/codesync/internal/version"
)

func main() {
	var configFile string
	var addr string
	var dbPath string
	var certFile string
	var keyFile string

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "codesyncd",
		Short:   "CodeSync indexing server",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			if cmd.Flag("bind").Changed || config.Http.Addr == "" {
				config.Http.Addr = addr
			}
			if cmd.Flag("db").Changed {
				config.DbPath = dbPath
			}
			if certFile != "" {
				config.Http.CertFile = certFile
			}
			if keyFile != "" {
				config.Http.KeyFile = keyFile
			}

			cmd.SilenceUsage = true
			s, err := server.New(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer slog.Info("Bye!")
			return s.Start(cmd.Context())
		},
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "f", "", "path to the server config file")
	rootCmd.Flags().StringVarP(&addr, "bind", "b", server.DefaultAddr, "address to bind the server")
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "codesync.db", "path to the index database")
	rootCmd.Flags().StringVarP(&certFile, "cert", "c", "", "path to the certificate file")
	rootCmd.Flags().StringVarP(&keyFile, "key", "k", "", "path to the key file")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*server.Config, error) {
	config := &server.Config{
		Http: &server.HttpServerConfig{},
	}
	if path == "" {
		return nil, fmt.Errorf("a config file is required (--config), it carries the seal key and embed provider settings")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return config, nil
}
