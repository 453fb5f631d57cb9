package main

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorlab/codesync/internal/client"
	"github.com/mirrorlab/codesync/internal/client/config"
	"github.com/mirrorlab/codesync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "codesync",
	Short:   "CodeSync keeps a remote semantic index converged with a local project",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:       viper.ConfigFileUsed(),
			ProjectDir: viper.GetString("project_dir"),
			ProjectID:  viper.GetString("project_id"),
			Name:       viper.GetString("name"),
			ServerURL:  viper.GetString("server_url"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		color.New(color.FgHiCyan, color.Bold).Printf("CodeSync %s\n", version.Short())

		c, err := client.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return c.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("dir", "d", "", "project directory to watch")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "sync server URL")
	rootCmd.Flags().StringP("project", "p", "", "project id")
}

func bindConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		path, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigFile(config.DefaultConfigPath)
	}
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		// flags and env can still provide everything
		slog.Debug("no config file", "error", err)
	}

	viper.BindPFlag("project_dir", cmd.Flags().Lookup("dir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("project_id", cmd.Flags().Lookup("project"))

	viper.SetEnvPrefix("CODESYNC")
	viper.AutomaticEnv()

	return nil
}
