package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/extractor"
	"github.com/sells-group/leadscout/internal/pipeline"
	"github.com/sells-group/leadscout/internal/resilience"
	"github.com/sells-group/leadscout/internal/scorer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full scrape-score-store pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p := pipeline.New(cfg, st, extractor.NewEngine(cfg.Scraper), newScorer())

		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("queries", result.Stats.QueriesAttempted),
			zap.Int("businesses", result.Stats.BusinessesFound),
			zap.Int("qualifying", len(result.Qualifying)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// newScorer wires the website evaluator with a shared retry budget
// and, when enabled, a headless renderer for JS-walled sites.
func newScorer() *scorer.Scorer {
	budget := resilience.NewBudget(cfg.Retry.MaxTotalRetries)
	fetcher := scorer.NewFetcher(cfg.Scoring, cfg.Retry, budget)

	var renderer scorer.Renderer
	if cfg.Scoring.HeadlessFallbackEnabled {
		timeout := time.Duration(cfg.Scoring.RequestTimeoutSecs) * time.Second
		renderer = scorer.NewHeadlessRenderer(cfg.Scoring.UserAgent, timeout)
	}
	return scorer.New(cfg.Scoring, fetcher, renderer)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
