// Package monitoring provides health checks for container
// orchestration and a background watchdog for long-lived deployments.
package monitoring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/store"
)

// maxRunAge is the watchdog bar for the weekly schedule: a completed
// run older than this marks the deployment unhealthy.
const maxRunAge = 8 * 24 * time.Hour

// Result is the outcome of a single health check.
type Result struct {
	Name    string         `json:"name"`
	Healthy bool           `json:"healthy"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Checker runs health checks against the store and filesystem.
type Checker struct {
	cfg   *config.Config
	store store.Store
	now   func() time.Time
}

// NewChecker creates a health checker.
func NewChecker(cfg *config.Config, st store.Store) *Checker {
	return &Checker{cfg: cfg, store: st, now: time.Now}
}

// CheckAll runs every check and reports whether all passed.
func (c *Checker) CheckAll(ctx context.Context) (bool, []Result) {
	results := []Result{
		c.CheckDirectories(),
		c.CheckDatabase(ctx),
		c.CheckConfig(),
		c.CheckLastRunAge(ctx),
	}
	healthy := true
	for _, r := range results {
		if !r.Healthy {
			healthy = false
		}
	}
	return healthy, results
}

// CheckDatabase verifies the store answers a basic query.
func (c *Checker) CheckDatabase(ctx context.Context) Result {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Result{
			Name:    "database",
			Message: fmt.Sprintf("database error: %v", err),
		}
	}
	details := map[string]any{
		"lead_count": stats.TotalLeads,
		"total_runs": stats.TotalRuns,
	}
	if stats.LastRun != nil {
		details["last_run_id"] = stats.LastRun.ID
		details["last_run_status"] = stats.LastRun.Status
	}
	return Result{
		Name:    "database",
		Healthy: true,
		Message: fmt.Sprintf("database OK, %d leads stored", stats.TotalLeads),
		Details: details,
	}
}

// CheckDirectories verifies the working directories exist and are
// writable, creating them when missing.
func (c *Checker) CheckDirectories() Result {
	dirs := map[string]string{
		"data":  filepath.Dir(c.cfg.Store.Path),
		"debug": c.cfg.Scraper.DebugDir,
	}

	var issues []string
	for name, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			issues = append(issues, fmt.Sprintf("%s: cannot create (%v)", name, err))
			continue
		}
		probe := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(probe, nil, 0o644); err != nil {
			issues = append(issues, fmt.Sprintf("%s: not writable (%v)", name, err))
			continue
		}
		os.Remove(probe)
	}

	if len(issues) > 0 {
		return Result{
			Name:    "directories",
			Message: fmt.Sprintf("directory issues: %v", issues),
		}
	}
	return Result{
		Name:    "directories",
		Healthy: true,
		Message: "all directories OK and writable",
	}
}

// CheckConfig validates the loaded configuration.
func (c *Checker) CheckConfig() Result {
	if err := c.cfg.Validate(); err != nil {
		return Result{
			Name:    "config",
			Message: fmt.Sprintf("config invalid: %v", err),
		}
	}
	return Result{
		Name:    "config",
		Healthy: true,
		Message: "configuration valid",
		Details: map[string]any{
			"cities":     len(c.cfg.Pipeline.Cities),
			"categories": len(c.cfg.Pipeline.Categories),
		},
	}
}

// CheckLastRunAge verifies the weekly schedule is keeping up. A
// deployment with no completed runs yet is healthy; one whose last
// completed run is stale is not.
func (c *Checker) CheckLastRunAge(ctx context.Context) Result {
	run, err := c.store.LastRun(ctx)
	if err != nil {
		return Result{
			Name:    "last_run_age",
			Message: fmt.Sprintf("error checking run age: %v", err),
		}
	}
	if run == nil || run.CompletedAt == nil {
		return Result{
			Name:    "last_run_age",
			Healthy: true,
			Message: "no completed runs yet (first run pending)",
		}
	}

	age := c.now().Sub(*run.CompletedAt)
	details := map[string]any{
		"last_run_id": run.ID,
		"age_days":    int(age.Hours() / 24),
	}
	if age > maxRunAge {
		return Result{
			Name:    "last_run_age",
			Message: fmt.Sprintf("last run was %d days ago (expected weekly)", int(age.Hours()/24)),
			Details: details,
		}
	}
	return Result{
		Name:    "last_run_age",
		Healthy: true,
		Message: fmt.Sprintf("last run was %d days ago", int(age.Hours()/24)),
		Details: details,
	}
}

// Watch re-runs the checks on a fixed interval and logs failures. It
// blocks until ctx is cancelled.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health watchdog", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health watchdog stopped")
			return
		case <-ticker.C:
			healthy, results := c.CheckAll(ctx)
			if healthy {
				log.Debug("health checks passed", zap.Int("checks", len(results)))
				continue
			}
			for _, r := range results {
				if !r.Healthy {
					log.Warn("health check failed",
						zap.String("check", r.Name),
						zap.String("message", r.Message),
					)
				}
			}
		}
	}
}
