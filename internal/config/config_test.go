package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/leads.db", cfg.Store.Path)
	assert.Equal(t, 90, cfg.Store.DedupeWindowDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.True(t, cfg.Scraper.Headless)
	assert.Equal(t, 30000, cfg.Scraper.TimeoutMs)
	assert.Equal(t, 1500, cfg.Scraper.ScrollPauseMs)
	assert.Equal(t, 15, cfg.Scraper.MaxScrolls)
	assert.Equal(t, 50, cfg.Scraper.MaxResultsPerQuery)
	assert.True(t, cfg.Scraper.ScreenshotOnFail)

	assert.Equal(t, 100, cfg.Scoring.WeightUnreachable)
	assert.Equal(t, 100, cfg.Scoring.WeightDNSFailed)
	assert.Equal(t, 90, cfg.Scoring.WeightTimeout)
	assert.Equal(t, 85, cfg.Scoring.WeightServerError)
	assert.Equal(t, 80, cfg.Scoring.WeightSSLError)
	assert.Equal(t, 75, cfg.Scoring.WeightParkedDomain)
	assert.Equal(t, 40, cfg.Scoring.WeightClientError)
	assert.Equal(t, 50, cfg.Scoring.Weight403404)
	assert.Equal(t, 5, cfg.Scoring.WeightWix)
	assert.Equal(t, 8, cfg.Scoring.WeightWeebly)
	assert.Equal(t, 40, cfg.Scoring.MinScoreToInclude)
	assert.Equal(t, 39, cfg.Scoring.UnverifiedScoreCap)
	assert.Equal(t, 15, cfg.Scoring.RequestTimeoutSecs)
	assert.Equal(t, 5, cfg.Scoring.MaxRedirects)
	assert.False(t, cfg.Scoring.IncludeUnverifiedLeads)
	assert.False(t, cfg.Scoring.IncludeSocialOnlyLeads)
	assert.Equal(t, []string{"timeout", "bot_protection"}, cfg.Scoring.UnverifiedReasons)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 60000, cfg.Retry.MaxBackoffMs)
	assert.InDelta(t, 0.25, cfg.Retry.JitterFraction, 0.001)
	assert.Equal(t, 50, cfg.Retry.MaxTotalRetries)

	assert.Len(t, cfg.Pipeline.Cities, 10)
	assert.Len(t, cfg.Pipeline.Categories, 10)
	assert.Equal(t, 7, cfg.Pipeline.ExclusivityDays)
	assert.Equal(t, 70, cfg.Pipeline.ExclusivityMinScore)
	assert.Equal(t, 15, cfg.Pipeline.ExclusivityMinReviews)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
scraper:
  max_scrolls: 25
scoring:
  min_score_to_include: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Scraper.MaxScrolls)
	assert.Equal(t, 50, cfg.Scoring.MinScoreToInclude)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Scraper.MaxResultsPerQuery)
	assert.Equal(t, 90, cfg.Store.DedupeWindowDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADSCOUT_LOG_LEVEL", "warn")
	t.Setenv("LEADSCOUT_STORE_PATH", "/tmp/other.db")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
}

func TestLoadQueriesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	queries := `
cities:
  - "Boise, ID"
categories:
  - locksmith
  - towing
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries.yaml"), []byte(queries), 0644))
	t.Setenv("LEADSCOUT_PIPELINE_QUERIES_FILE", filepath.Join(dir, "queries.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Boise, ID"}, cfg.Pipeline.Cities)
	assert.Equal(t, []string{"locksmith", "towing"}, cfg.Pipeline.Categories)
}

func TestLoadQueriesFileMissing(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEADSCOUT_PIPELINE_QUERIES_FILE", filepath.Join(dir, "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "data/leads.db"
	cfg.Store.DedupeWindowDays = 90
	cfg.Scraper.MaxScrolls = 15
	cfg.Scraper.MaxResultsPerQuery = 50
	cfg.Scoring.MinScoreToInclude = 40
	cfg.Scoring.UnverifiedScoreCap = 39
	cfg.Scoring.MaxRedirects = 5
	cfg.Scoring.RequestTimeoutSecs = 15
	cfg.Retry.JitterFraction = 0.25
	cfg.Pipeline.Cities = []string{"Austin, TX"}
	cfg.Pipeline.Categories = []string{"plumber"}
	return cfg
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidate_CapMustBeBelowThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Scoring.UnverifiedScoreCap = 40

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unverified_score_cap")
}

func TestValidate_EmptyQueries(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.Cities = nil

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.cities")
}
