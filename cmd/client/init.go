package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mirrorlab/codesync/internal/client/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a config for a project directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		serverURL, _ := cmd.Flags().GetString("server")
		name, _ := cmd.Flags().GetString("name")
		path, _ := cmd.Flags().GetString("config")

		cfg := &config.Config{
			ProjectDir: dir,
			Name:       name,
			ServerURL:  serverURL,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("config %q already exists, use --force to overwrite", path)
			}
		}

		if err := cfg.Save(path); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		green := color.New(color.FgHiGreen).SprintFunc()
		fmt.Printf("%s wrote %s\n", green("✔"), path)
		fmt.Printf("  project  %s (%s)\n", cfg.Name, cfg.ProjectID)
		fmt.Printf("  dir      %s\n", cfg.ProjectDir)
		fmt.Printf("  server   %s\n", cfg.ServerURL)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("server", "s", config.DefaultServerURL, "sync server URL")
	initCmd.Flags().StringP("name", "n", "", "project name (defaults to the directory name)")
	initCmd.Flags().Bool("force", false, "overwrite an existing config")
}
