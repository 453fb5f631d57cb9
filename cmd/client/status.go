package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mirrorlab/codesync/internal/sdk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		api, err := sdk.New(cfg.ServerURL)
		if err != nil {
			return err
		}

		health, err := api.Sync.Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("server %s: %s (v%s, up %s)\n", cfg.ServerURL, health.Status, health.Version, health.Uptime)

		projects, err := api.Sync.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if projects.Count == 0 {
			fmt.Println("no projects registered")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROJECT\tNAME\tFILES\tROOT\tLAST SYNC")
		for _, p := range projects.Projects {
			root := p.RootHash
			if len(root) > 12 {
				root = root[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ProjectID, p.Name, p.FileCount, root, p.LastSync)
		}
		return w.Flush()
	},
}
