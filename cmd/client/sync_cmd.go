package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mirrorlab/codesync/internal/client"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single sync cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		result, err := client.SyncOnce(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if result.UpToDate {
			fmt.Println("already up to date")
			return nil
		}
		fmt.Printf("pushed %d file(s), removed %d, rejected %d (%s sent in %s)\n",
			result.Pushed, result.Removed, result.Rejected,
			humanize.Bytes(uint64(result.Sent)),
			result.Took.Round(time.Millisecond))
		return nil
	},
}
