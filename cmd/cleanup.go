package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old never-exported leads past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		retention := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
		n, err := st.CleanupOldLeads(ctx, retention)
		if err != nil {
			return eris.Wrap(err, "cleanup old leads")
		}
		fmt.Printf("deleted %d leads older than %d days\n", n, cfg.Store.RetentionDays)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
