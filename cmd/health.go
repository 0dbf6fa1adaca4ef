package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/monitoring"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run health checks and exit non-zero when any fail",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		healthy, results := monitoring.NewChecker(cfg, st).CheckAll(ctx)
		for _, r := range results {
			status := "OK"
			if !r.Healthy {
				status = "FAIL"
			}
			fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
		}

		if !healthy {
			return eris.New("unhealthy")
		}
		fmt.Println("overall: healthy")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
