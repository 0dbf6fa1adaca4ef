package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
)

var scoreURL string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single website and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := newScorer().Evaluate(cmd.Context(), scoreURL)

		out := struct {
			model.ScoringResult
			Tier string `json:"lead_tier"`
		}{
			ScoringResult: result,
			Tier:          model.TierFor(result.Score),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreURL, "url", "", "website URL to evaluate (required)")
	_ = scoreCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scoreCmd)
}
