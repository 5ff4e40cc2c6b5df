package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the sync job on a cron schedule.
type Scheduler struct {
	job    *SyncJob
	cron   *cron.Cron
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler. An empty schedule uses
// DefaultSyncSchedule.
func NewScheduler(job *SyncJob, schedule string, logger zerolog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSyncSchedule
	}

	logger = logger.With().Str("component", "sync_scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		job:    job,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.job.Run(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling calendar sync %q: %w", schedule, err)
	}

	s.logger.Debug().Str("schedule", schedule).Msg("calendar sync scheduled")
	return s, nil
}

// Start begins running scheduled syncs.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("starting sync scheduler")
	s.cron.Start()
}

// Stop cancels a running sync and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("sync scheduler stopped")
}
