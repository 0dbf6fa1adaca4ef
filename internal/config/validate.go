package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for values that would make a run
// misbehave in ways that are hard to diagnose later.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Store.DedupeWindowDays < 1 {
		errs = append(errs, "store.dedupe_window_days must be >= 1")
	}

	if c.Scraper.MaxScrolls < 1 {
		errs = append(errs, "scraper.max_scrolls must be >= 1")
	}
	if c.Scraper.MaxResultsPerQuery < 1 {
		errs = append(errs, "scraper.max_results_per_query must be >= 1")
	}

	if c.Scoring.MinScoreToInclude < 0 || c.Scoring.MinScoreToInclude > 100 {
		errs = append(errs, "scoring.min_score_to_include must be between 0 and 100")
	}
	if c.Scoring.UnverifiedScoreCap >= c.Scoring.MinScoreToInclude {
		errs = append(errs, "scoring.unverified_score_cap must be below min_score_to_include")
	}
	if c.Scoring.MaxRedirects < 1 {
		errs = append(errs, "scoring.max_redirects must be >= 1")
	}
	if c.Scoring.RequestTimeoutSecs < 1 {
		errs = append(errs, "scoring.request_timeout_seconds must be >= 1")
	}

	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "retry.jitter_fraction must be between 0 and 1")
	}
	if c.Retry.MaxTotalRetries < 0 {
		errs = append(errs, "retry.max_total_retries must be >= 0")
	}

	if len(c.Pipeline.Cities) == 0 {
		errs = append(errs, "pipeline.cities must not be empty")
	}
	if len(c.Pipeline.Categories) == 0 {
		errs = append(errs, "pipeline.categories must not be empty")
	}

	if len(errs) > 0 {
		return eris.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
