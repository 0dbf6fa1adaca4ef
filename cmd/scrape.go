package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/extractor"
)

var (
	scrapeCity     string
	scrapeCategory string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one city/category query and print the businesses found",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine := extractor.NewEngine(cfg.Scraper)
		businesses, err := engine.Scrape(ctx, scrapeCity, scrapeCategory)
		if err != nil {
			return eris.Wrapf(err, "scrape %s in %s", scrapeCategory, scrapeCity)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(businesses)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeCity, "city", "", "city to search (required)")
	scrapeCmd.Flags().StringVar(&scrapeCategory, "category", "", "business category to search (required)")
	_ = scrapeCmd.MarkFlagRequired("city")
	_ = scrapeCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(scrapeCmd)
}
