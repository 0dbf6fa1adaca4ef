// Package config loads application configuration from an optional
// config.yaml plus LEADSCOUT_-prefixed environment variables, and
// installs the global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Scraper  ScraperConfig  `yaml:"scraper" mapstructure:"scraper"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver selects the backend: "sqlite" (default) or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DatabaseURL is the Postgres connection string when Driver is "postgres".
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// DedupeWindowDays is how long a lead stays fresh; fresh leads are
	// not re-scored or re-contacted.
	DedupeWindowDays int `yaml:"dedupe_window_days" mapstructure:"dedupe_window_days"`
	// RetentionDays controls cleanup of old never-exported leads.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// ScraperConfig configures the maps-results extractor.
type ScraperConfig struct {
	Headless           bool   `yaml:"headless" mapstructure:"headless"`
	TimeoutMs          int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	ScrollPauseMs      int    `yaml:"scroll_pause_ms" mapstructure:"scroll_pause_ms"`
	MaxScrolls         int    `yaml:"max_scrolls" mapstructure:"max_scrolls"`
	MaxResultsPerQuery int    `yaml:"max_results_per_query" mapstructure:"max_results_per_query"`
	CardDelayMs        int    `yaml:"card_delay_ms" mapstructure:"card_delay_ms"`
	ScreenshotOnFail   bool   `yaml:"screenshot_on_failure" mapstructure:"screenshot_on_failure"`
	HTMLDumpOnFail     bool   `yaml:"html_dump_on_failure" mapstructure:"html_dump_on_failure"`
	DebugDir           string `yaml:"debug_dir" mapstructure:"debug_dir"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScoringConfig holds website scoring weights and thresholds.
// Signal weights are additive; hard failures carry weights at or above
// the inclusion threshold so any one of them qualifies a lead.
type ScoringConfig struct {
	// Hard failures.
	WeightUnreachable  int `yaml:"weight_unreachable" mapstructure:"weight_unreachable"`
	WeightDNSFailed    int `yaml:"weight_dns_failed" mapstructure:"weight_dns_failed"`
	WeightTimeout      int `yaml:"weight_timeout" mapstructure:"weight_timeout"`
	WeightServerError  int `yaml:"weight_5xx_error" mapstructure:"weight_5xx_error"`
	WeightSSLError     int `yaml:"weight_ssl_error" mapstructure:"weight_ssl_error"`
	WeightParkedDomain int `yaml:"weight_parked_domain" mapstructure:"weight_parked_domain"`
	WeightFetchFailed  int `yaml:"weight_fetch_failed" mapstructure:"weight_fetch_failed"`
	WeightEmptyPage    int `yaml:"weight_empty_page" mapstructure:"weight_empty_page"`
	Weight403404       int `yaml:"weight_403_404" mapstructure:"weight_403_404"`
	WeightUnderConstr  int `yaml:"weight_under_construction" mapstructure:"weight_under_construction"`
	WeightClientError  int `yaml:"weight_4xx_error" mapstructure:"weight_4xx_error"`
	WeightBotProtect   int `yaml:"weight_bot_protection" mapstructure:"weight_bot_protection"`

	// Medium signals.
	WeightFlash         int `yaml:"weight_flash_detected" mapstructure:"weight_flash_detected"`
	WeightHTTPOnly      int `yaml:"weight_http_only" mapstructure:"weight_http_only"`
	WeightOldCopyright  int `yaml:"weight_outdated_copyright" mapstructure:"weight_outdated_copyright"`
	WeightNoViewport    int `yaml:"weight_missing_viewport" mapstructure:"weight_missing_viewport"`
	WeightNotResponsive int `yaml:"weight_missing_responsive" mapstructure:"weight_missing_responsive"`
	WeightLastModified  int `yaml:"weight_last_modified" mapstructure:"weight_last_modified"`
	WeightSlowResponse  int `yaml:"weight_slow_response" mapstructure:"weight_slow_response"`
	WeightRedirectChain int `yaml:"weight_redirect_chain" mapstructure:"weight_redirect_chain"`
	WeightOutdatedTech  int `yaml:"weight_outdated_tech" mapstructure:"weight_outdated_tech"`
	WeightMissingMeta   int `yaml:"weight_missing_meta_description" mapstructure:"weight_missing_meta_description"`
	WeightMissingH1     int `yaml:"weight_missing_h1" mapstructure:"weight_missing_h1"`
	WeightGenericTitle  int `yaml:"weight_generic_title" mapstructure:"weight_generic_title"`

	// Weak signals (DIY builders — low weight to limit false positives).
	WeightWix            int `yaml:"weight_wix" mapstructure:"weight_wix"`
	WeightSquarespace    int `yaml:"weight_squarespace" mapstructure:"weight_squarespace"`
	WeightWeebly         int `yaml:"weight_weebly" mapstructure:"weight_weebly"`
	WeightGoDaddy        int `yaml:"weight_godaddy_builder" mapstructure:"weight_godaddy_builder"`
	WeightDIYDefault     int `yaml:"weight_diy_default" mapstructure:"weight_diy_default"`
	WeightSocialOnly     int `yaml:"weight_social_only" mapstructure:"weight_social_only"`
	WeightNoWebsite      int `yaml:"weight_no_website" mapstructure:"weight_no_website"`

	// Thresholds.
	MinScoreToInclude      int     `yaml:"min_score_to_include" mapstructure:"min_score_to_include"`
	UnverifiedScoreCap     int     `yaml:"unverified_score_cap" mapstructure:"unverified_score_cap"`
	CopyrightStaleYears    int     `yaml:"copyright_stale_years" mapstructure:"copyright_stale_years"`
	LastModifiedStaleYears int     `yaml:"last_modified_stale_years" mapstructure:"last_modified_stale_years"`
	SlowResponseMs         int     `yaml:"slow_response_ms" mapstructure:"slow_response_ms"`
	RedirectChainThreshold int     `yaml:"redirect_chain_threshold" mapstructure:"redirect_chain_threshold"`
	RequestTimeoutSecs     int     `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	MaxRedirects           int     `yaml:"max_redirects" mapstructure:"max_redirects"`
	RequestsPerSecond      float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Inclusion toggles.
	IncludeUnverifiedLeads  bool     `yaml:"include_unverified_leads" mapstructure:"include_unverified_leads"`
	IncludeSocialOnlyLeads  bool     `yaml:"include_social_only_leads" mapstructure:"include_social_only_leads"`
	IncludeNoWebsiteLeads   bool     `yaml:"include_no_website_leads" mapstructure:"include_no_website_leads"`
	UnverifiedReasons       []string `yaml:"unverified_reasons" mapstructure:"unverified_reasons"`
	HeadlessFallbackEnabled bool     `yaml:"headless_fallback_enabled" mapstructure:"headless_fallback_enabled"`

	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig configures retry and backoff behavior.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	// MaxTotalRetries caps retries across a whole run.
	MaxTotalRetries int `yaml:"max_total_retries" mapstructure:"max_total_retries"`
}

// PipelineConfig configures a weekly run.
type PipelineConfig struct {
	Cities     []string `yaml:"cities" mapstructure:"cities"`
	Categories []string `yaml:"categories" mapstructure:"categories"`
	// QueriesFile optionally overrides Cities/Categories from a YAML file.
	QueriesFile string `yaml:"queries_file" mapstructure:"queries_file"`

	ExclusivityDays       int `yaml:"exclusivity_days" mapstructure:"exclusivity_days"`
	ExclusivityMinScore   int `yaml:"exclusivity_min_score" mapstructure:"exclusivity_min_score"`
	ExclusivityMinReviews int `yaml:"exclusivity_min_reviews" mapstructure:"exclusivity_min_reviews"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Pipeline.QueriesFile != "" {
		if err := cfg.applyQueriesFile(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/leads.db")
	v.SetDefault("store.dedupe_window_days", 90)
	v.SetDefault("store.retention_days", 180)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.timeout_ms", 30000)
	v.SetDefault("scraper.scroll_pause_ms", 1500)
	v.SetDefault("scraper.max_scrolls", 15)
	v.SetDefault("scraper.max_results_per_query", 50)
	v.SetDefault("scraper.card_delay_ms", 250)
	v.SetDefault("scraper.screenshot_on_failure", true)
	v.SetDefault("scraper.html_dump_on_failure", true)
	v.SetDefault("scraper.debug_dir", "debug")
	v.SetDefault("scraper.user_agent", defaultUserAgent)

	v.SetDefault("scoring.weight_unreachable", 100)
	v.SetDefault("scoring.weight_dns_failed", 100)
	v.SetDefault("scoring.weight_timeout", 90)
	v.SetDefault("scoring.weight_5xx_error", 85)
	v.SetDefault("scoring.weight_ssl_error", 80)
	v.SetDefault("scoring.weight_parked_domain", 75)
	v.SetDefault("scoring.weight_fetch_failed", 70)
	v.SetDefault("scoring.weight_empty_page", 60)
	v.SetDefault("scoring.weight_403_404", 50)
	v.SetDefault("scoring.weight_under_construction", 50)
	v.SetDefault("scoring.weight_4xx_error", 40)
	v.SetDefault("scoring.weight_bot_protection", 50)
	v.SetDefault("scoring.weight_flash_detected", 40)
	v.SetDefault("scoring.weight_http_only", 30)
	v.SetDefault("scoring.weight_outdated_copyright", 25)
	v.SetDefault("scoring.weight_missing_viewport", 20)
	v.SetDefault("scoring.weight_missing_responsive", 15)
	v.SetDefault("scoring.weight_last_modified", 20)
	v.SetDefault("scoring.weight_slow_response", 15)
	v.SetDefault("scoring.weight_redirect_chain", 15)
	v.SetDefault("scoring.weight_outdated_tech", 10)
	v.SetDefault("scoring.weight_missing_meta_description", 10)
	v.SetDefault("scoring.weight_missing_h1", 10)
	v.SetDefault("scoring.weight_generic_title", 10)
	v.SetDefault("scoring.weight_wix", 5)
	v.SetDefault("scoring.weight_squarespace", 5)
	v.SetDefault("scoring.weight_weebly", 8)
	v.SetDefault("scoring.weight_godaddy_builder", 10)
	v.SetDefault("scoring.weight_diy_default", 5)
	v.SetDefault("scoring.weight_social_only", 30)
	v.SetDefault("scoring.weight_no_website", 50)
	v.SetDefault("scoring.min_score_to_include", 40)
	v.SetDefault("scoring.unverified_score_cap", 39)
	v.SetDefault("scoring.copyright_stale_years", 2)
	v.SetDefault("scoring.last_modified_stale_years", 2)
	v.SetDefault("scoring.slow_response_ms", 3000)
	v.SetDefault("scoring.redirect_chain_threshold", 3)
	v.SetDefault("scoring.request_timeout_seconds", 15)
	v.SetDefault("scoring.max_redirects", 5)
	v.SetDefault("scoring.requests_per_second", 1.0)
	v.SetDefault("scoring.include_unverified_leads", false)
	v.SetDefault("scoring.include_social_only_leads", false)
	v.SetDefault("scoring.include_no_website_leads", false)
	v.SetDefault("scoring.unverified_reasons", []string{"timeout", "bot_protection"})
	v.SetDefault("scoring.headless_fallback_enabled", true)
	v.SetDefault("scoring.user_agent", defaultUserAgent)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 60000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.max_total_retries", 50)

	v.SetDefault("pipeline.cities", []string{
		"Austin, TX",
		"Denver, CO",
		"Phoenix, AZ",
		"Nashville, TN",
		"Charlotte, NC",
		"Portland, OR",
		"San Antonio, TX",
		"Jacksonville, FL",
		"Columbus, OH",
		"Indianapolis, IN",
	})
	v.SetDefault("pipeline.categories", []string{
		"plumber",
		"electrician",
		"hvac repair",
		"roofing contractor",
		"landscaping service",
		"auto repair shop",
		"dentist",
		"chiropractor",
		"hair salon",
		"restaurant",
	})
	v.SetDefault("pipeline.exclusivity_days", 7)
	v.SetDefault("pipeline.exclusivity_min_score", 70)
	v.SetDefault("pipeline.exclusivity_min_reviews", 15)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
