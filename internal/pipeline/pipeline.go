package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
	"github.com/launchradar/launchradar/internal/scraper"
	"github.com/launchradar/launchradar/internal/storage/vector"
)

// Scraper produces one session's worth of extracted companies. The
// production implementation is scraper.Orchestrator.
type Scraper interface {
	Run(ctx context.Context) (*scraper.Result, error)
}

// Pipeline runs one scrape-enrich-persist cycle end to end: browser
// session, cross-run deduplication, validation and enrichment, and the
// bulk upsert. Stages downstream of the scrape degrade individually; a
// run only fails when the scrape itself fails or the bulk write fails.
type Pipeline struct {
	config       *common.Config
	orchestrator Scraper
	gateway      *vector.Gateway
	store        interfaces.CompanyStore // nil disables persistence
	seen         interfaces.SeenStore    // nil disables cross-run dedup
	logger       arbor.ILogger

	mu            sync.Mutex
	runCount      int
	lastStats     *models.RunStats
	schemaEnsured bool
}

// New assembles a pipeline. store and seen may be nil to disable the
// corresponding stage.
func New(cfg *common.Config, orchestrator Scraper, gateway *vector.Gateway, store interfaces.CompanyStore, seenStore interfaces.SeenStore, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		config:       cfg,
		orchestrator: orchestrator,
		gateway:      gateway,
		store:        store,
		seen:         seenStore,
		logger:       logger,
	}
}

// Run executes one full cycle and returns its statistics. The returned
// stats are also retained for the status endpoint.
func (p *Pipeline) Run(ctx context.Context) (models.RunStats, error) {
	p.mu.Lock()
	p.runCount++
	run := p.runCount
	p.mu.Unlock()

	stats := models.RunStats{RunNumber: run, StartedAt: time.Now()}
	p.logger.Info().Int("run", run).Msg("Pipeline run starting")

	err := p.execute(ctx, &stats)
	stats.Duration = time.Since(stats.StartedAt)
	if err != nil {
		stats.Failed = true
		stats.Error = err.Error()
		p.logger.Error().Err(err).Int("run", run).Dur("duration", stats.Duration).Msg("Pipeline run failed")
	} else {
		p.logger.Info().
			Int("run", run).
			Int("extracted", stats.Extracted).
			Int("new", stats.NewRecords).
			Int("inserted", stats.Inserted).
			Int("rejected", stats.Rejected).
			Int("degraded", stats.Degraded).
			Dur("duration", stats.Duration).
			Msg("Pipeline run complete")
	}

	p.mu.Lock()
	p.lastStats = &stats
	p.mu.Unlock()

	return stats, err
}

func (p *Pipeline) execute(ctx context.Context, stats *models.RunStats) error {
	result, err := p.orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	stats.Extracted = len(result.Companies)

	fresh, err := p.filterSeen(result.Companies)
	if err != nil {
		return fmt.Errorf("cross-run dedup: %w", err)
	}
	stats.NewRecords = len(fresh)

	if len(fresh) == 0 {
		p.logger.Info().Int("extracted", stats.Extracted).Msg("No new companies this run")
		return nil
	}

	records, rejected, degraded := p.gateway.PrepareBatch(ctx, fresh, stats.RunNumber)
	stats.Rejected = rejected
	stats.Degraded = degraded

	if p.store == nil {
		p.logger.Info().Int("prepared", len(records)).Msg("Persistence disabled, discarding prepared records")
		return nil
	}

	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	if err := p.store.UpsertBatch(ctx, records); err != nil {
		return fmt.Errorf("persisting batch: %w", err)
	}
	stats.Inserted = len(records)

	p.markSeen(records)
	return nil
}

// filterSeen drops companies whose URL a previous run already
// persisted. Companies without a URL always pass through.
func (p *Pipeline) filterSeen(companies []models.RawCompany) ([]models.RawCompany, error) {
	if p.seen == nil {
		return companies, nil
	}

	fresh := make([]models.RawCompany, 0, len(companies))
	for _, c := range companies {
		if c.URL != "" {
			known, err := p.seen.Seen(c.URL)
			if err != nil {
				return nil, err
			}
			if known {
				continue
			}
		}
		fresh = append(fresh, c)
	}

	if skipped := len(companies) - len(fresh); skipped > 0 {
		p.logger.Info().Int("skipped", skipped).Msg("Skipped companies persisted by earlier runs")
	}
	return fresh, nil
}

// markSeen records persisted URLs. Failures only log: a missed mark
// costs one redundant enrichment next run, never data.
func (p *Pipeline) markSeen(records []models.CompanyRecord) {
	if p.seen == nil {
		return
	}
	for _, r := range records {
		if r.Metadata.URL == "" {
			continue
		}
		if err := p.seen.MarkSeen(r.Metadata.URL); err != nil {
			p.logger.Warn().Err(err).Str("url", r.Metadata.URL).Msg("Failed to record seen URL")
		}
	}
}

func (p *Pipeline) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schemaEnsured {
		return nil
	}
	if err := p.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	p.schemaEnsured = true
	return nil
}

// LastStats returns the most recent run's statistics and the total run
// count, for the status endpoint. Nil when no run has finished yet.
func (p *Pipeline) LastStats() (*models.RunStats, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastStats == nil {
		return nil, p.runCount
	}
	stats := *p.lastStats
	return &stats, p.runCount
}
