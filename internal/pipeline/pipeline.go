// Package pipeline orchestrates a full lead run: scrape the maps
// results for every city/category query, score each business's
// website, and upsert qualifying leads into the store.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

// Scraper yields business candidates for one maps query. Implemented
// by extractor.Engine.
type Scraper interface {
	ScrapeWithIsolation(ctx context.Context, city, category string) ([]model.Business, error)
}

// Evaluator scores a single website. Implemented by scorer.Scorer.
type Evaluator interface {
	EvaluateWithIsolation(ctx context.Context, rawURL string) model.ScoringResult
}

// Pipeline runs the weekly scrape-score-store cycle.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	scraper Scraper
	scorer  Evaluator
	now     func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, scraper Scraper, evaluator Evaluator) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		scraper: scraper,
		scorer:  evaluator,
		now:     time.Now,
	}
}

// Result summarizes one completed run.
type Result struct {
	RunID      string         `json:"run_id"`
	Stats      store.RunStats `json:"stats"`
	Qualifying []model.Lead   `json:"qualifying"`
}

// Run executes every city/category query, processes the businesses
// found, and records the run outcome. A query failure is logged and
// skipped; only context cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))

	if err := p.store.StartRun(ctx, runID); err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}

	result := &Result{RunID: runID}
	log.Info("pipeline: run started",
		zap.Int("cities", len(p.cfg.Pipeline.Cities)),
		zap.Int("categories", len(p.cfg.Pipeline.Categories)),
	)

	runErr := p.scrapeAll(ctx, log, result)

	// Bookkeeping still happens when the run was cancelled mid-flight.
	bg := context.WithoutCancel(ctx)

	if runErr == nil {
		if n, err := p.store.CleanupOldLeads(bg, time.Duration(p.cfg.Store.RetentionDays)*24*time.Hour); err != nil {
			log.Warn("pipeline: cleanup failed", zap.Error(err))
		} else if n > 0 {
			log.Info("pipeline: cleaned up old leads", zap.Int("deleted", n))
		}
	}

	if err := p.store.CompleteRun(bg, runID, result.Stats, runErr); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}

	if runErr != nil {
		return result, runErr
	}
	log.Info("pipeline: run complete",
		zap.Int("queries", result.Stats.QueriesAttempted),
		zap.Int("businesses", result.Stats.BusinessesFound),
		zap.Int("qualifying", len(result.Qualifying)),
		zap.Int("errors", result.Stats.Errors),
	)
	return result, nil
}

func (p *Pipeline) scrapeAll(ctx context.Context, log *zap.Logger, result *Result) error {
	for _, city := range p.cfg.Pipeline.Cities {
		for _, category := range p.cfg.Pipeline.Categories {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: run aborted")
			}

			qlog := log.With(zap.String("city", city), zap.String("category", category))
			result.Stats.QueriesAttempted++

			businesses, err := p.scraper.ScrapeWithIsolation(ctx, city, category)
			if err != nil {
				qlog.Error("pipeline: query failed", zap.Error(err))
				result.Stats.Errors++
				continue
			}
			result.Stats.QueriesSucceeded++
			result.Stats.BusinessesFound += len(businesses)
			qlog.Info("pipeline: query complete", zap.Int("businesses", len(businesses)))

			for _, b := range businesses {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "pipeline: run aborted")
				}
				if lead := p.processBusiness(ctx, qlog, b); lead != nil {
					result.Qualifying = append(result.Qualifying, *lead)
				}
			}
		}
	}
	return nil
}

// processBusiness takes one scraped candidate through dedupe, scoring,
// exclusivity, and upsert. It returns the lead when it is new and
// clears the inclusion bar, nil otherwise.
func (p *Pipeline) processBusiness(ctx context.Context, log *zap.Logger, b model.Business) *model.Lead {
	dup, err := p.store.IsDuplicate(ctx, b.PlaceID, b.Website)
	if err != nil {
		log.Warn("pipeline: duplicate check failed", zap.String("place_id", b.PlaceID), zap.Error(err))
		return nil
	}
	if dup {
		return nil
	}

	var lead model.Lead
	if !b.HasWebsite() {
		if !p.cfg.Scoring.IncludeNoWebsiteLeads {
			return nil
		}
		// No site to evaluate: the absence is the finding.
		lead = model.FromBusiness(b, model.ScoringResult{
			Score:   p.cfg.Scoring.WeightNoWebsite,
			Reasons: []string{model.ReasonNoWebsite},
		})
	} else {
		res := p.scorer.EvaluateWithIsolation(ctx, b.Website)
		lead = model.FromBusiness(b, res)
	}

	if lead.QualifiesForExclusivity(p.cfg.Pipeline.ExclusivityMinScore, p.cfg.Pipeline.ExclusivityMinReviews) {
		until := p.now().Add(time.Duration(p.cfg.Pipeline.ExclusivityDays) * 24 * time.Hour)
		lead.ExclusiveTier = model.ExportTierPro
		lead.ExclusiveUntil = &until
	}

	isNew, err := p.store.UpsertLead(ctx, lead)
	if err != nil {
		log.Warn("pipeline: upsert failed", zap.String("place_id", lead.PlaceID), zap.Error(err))
		return nil
	}
	if !isNew {
		// Raced with a fresh row inside the dedupe window.
		return nil
	}
	if lead.Score < p.cfg.Scoring.MinScoreToInclude {
		return nil
	}
	return &lead
}
