package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/models"
)

// Runner executes one pipeline cycle. Implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (models.RunStats, error)
}

// Service drives periodic pipeline runs on a fixed interval. A run
// already in progress is never overlapped; the tick is skipped instead.
type Service struct {
	runner   Runner
	interval time.Duration
	cron     *cron.Cron
	logger   arbor.ILogger

	mu        sync.Mutex
	running   bool
	inFlight  bool
	baseCtx   context.Context
	cancelCtx context.CancelFunc
}

// NewService creates a periodic runner. Interval must be positive.
func NewService(runner Runner, interval time.Duration, logger arbor.ILogger) (*Service, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	return &Service{
		runner:   runner,
		interval: interval,
		cron:     cron.New(),
		logger:   logger,
	}, nil
}

// Start runs the pipeline immediately, then on every interval tick,
// until Stop or context cancellation.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.baseCtx, s.cancelCtx = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("failed to schedule pipeline: %w", err)
	}

	s.logger.Info().Dur("interval", s.interval).Msg("Scheduler started")

	// First cycle runs immediately rather than waiting a full interval
	s.tick()

	s.cron.Start()

	<-s.baseCtx.Done()
	return s.baseCtx.Err()
}

func (s *Service) tick() {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous run still in progress, skipping tick")
		return
	}
	s.inFlight = true
	ctx := s.baseCtx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}

	stats, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("run", stats.RunNumber).Msg("Scheduled run failed")
		return
	}

	s.logger.Info().
		Int("run", stats.RunNumber).
		Int("inserted", stats.Inserted).
		Str("next_run", time.Now().Add(s.interval).Format(time.RFC3339)).
		Msg("Scheduled run finished")
}

// Stop halts scheduling and releases the start loop. A run in progress
// is cancelled through its context.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancelCtx
	s.mu.Unlock()

	cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
