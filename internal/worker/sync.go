package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/calendar"
)

// EventFetcher fetches and caches one provider's events.
// *calendar.Aggregator satisfies it.
type EventFetcher interface {
	FetchSource(ctx context.Context, src calendar.Source, w calendar.Window) ([]calendar.CalendarEvent, error)
	CacheEvents(ctx context.Context, src calendar.Source, events []calendar.CalendarEvent) error
}

// SessionLoader restores a provider session from storage.
type SessionLoader interface {
	Load(ctx context.Context) error
}

// SyncJob refreshes the event cache for every connected provider.
type SyncJob struct {
	config      SyncConfig
	fetcher     EventFetcher
	connections calendar.ConnectionRepository
	sessions    []SessionLoader
	diagnosers  []calendar.Diagnoser
	logger      zerolog.Logger
	now         func() time.Time

	metrics *SyncMetrics
}

// SyncMetrics tracks sync job statistics.
type SyncMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	SuccessfulSyncs  int64
	FailedSyncs      int64
	SkippedSyncs     int64
	EventsCached     int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Config      SyncConfig
	Fetcher     EventFetcher
	Connections calendar.ConnectionRepository

	// Sessions are reloaded before each run so tokens written by the API
	// process are picked up.
	Sessions []SessionLoader

	// Diagnosers are probed by HealthCheck.
	Diagnosers []calendar.Diagnoser

	Logger zerolog.Logger
	Now    func() time.Time
}

// NewSyncJob creates a new sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SyncJob{
		config:      cfg.Config.withDefaults(),
		fetcher:     cfg.Fetcher,
		connections: cfg.Connections,
		sessions:    cfg.Sessions,
		diagnosers:  cfg.Diagnosers,
		logger:      cfg.Logger.With().Str("component", "calendar_sync").Logger(),
		now:         now,
		metrics:     &SyncMetrics{},
	}
}

// SyncResult contains the result of a sync run.
type SyncResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Connections  int
	Successful   int
	Failed       int
	Skipped      int
	EventsCached int
	Errors       []SyncError
}

// SyncError records a failed connection sync.
type SyncError struct {
	Provider calendar.Source
	Error    string
}

type syncOutcome struct {
	provider calendar.Source
	events   int
	skipped  bool
	err      error
}

// Run syncs every connected provider once.
func (j *SyncJob) Run(ctx context.Context) *SyncResult {
	startTime := time.Now()
	result := &SyncResult{StartTime: startTime}

	for _, s := range j.sessions {
		if err := s.Load(ctx); err != nil {
			j.logger.Warn().Err(err).Msg("failed to load calendar session")
		}
	}

	conns, err := j.connections.List(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("listing calendar connections")
		result.Failed++
		result.Errors = append(result.Errors, SyncError{Error: err.Error()})
		j.finish(result)
		return result
	}

	var targets []calendar.Source
	for _, c := range conns {
		if c.IsConnected && c.Provider.IsProvider() {
			targets = append(targets, c.Provider)
		}
	}
	result.Connections = len(targets)

	j.logger.Info().
		Int("connections", len(targets)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting calendar sync")

	w := calendar.Window{}.Resolve(j.now())

	sourcesChan := make(chan calendar.Source, len(targets))
	resultsChan := make(chan syncOutcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.syncWorker(ctx, w, sourcesChan, resultsChan)
		}()
	}

	for _, src := range targets {
		sourcesChan <- src
	}
	close(sourcesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for out := range resultsChan {
		switch {
		case out.skipped:
			result.Skipped++
		case out.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, SyncError{
				Provider: out.provider,
				Error:    out.err.Error(),
			})
		default:
			result.Successful++
			result.EventsCached += out.events
		}
	}

	j.finish(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("events_cached", result.EventsCached).
		Msg("calendar sync completed")

	return result
}

func (j *SyncJob) syncWorker(ctx context.Context, w calendar.Window, sources <-chan calendar.Source, results chan<- syncOutcome) {
	for src := range sources {
		select {
		case <-ctx.Done():
			results <- syncOutcome{provider: src, err: ctx.Err()}
		default:
			results <- j.syncSource(ctx, src, w)
		}
	}
}

func (j *SyncJob) syncSource(ctx context.Context, src calendar.Source, w calendar.Window) syncOutcome {
	out := syncOutcome{provider: src}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	events, err := j.fetcher.FetchSource(ctx, src, w)
	if errors.Is(err, calendar.ErrNotAuthenticated) {
		j.logger.Debug().Str("source", string(src)).Msg("provider signed out, skipping")
		out.skipped = true
		return out
	}
	if err != nil {
		j.logger.Warn().Err(err).Str("source", string(src)).Msg("calendar sync failed")
		out.err = err
		return out
	}

	// An empty fetch keeps the previous cache entry.
	if len(events) == 0 {
		return out
	}

	if err := j.fetcher.CacheEvents(ctx, src, events); err != nil {
		out.err = fmt.Errorf("caching %s events: %w", src, err)
		return out
	}
	out.events = len(events)
	return out
}

// HealthCheck probes every diagnosable provider.
func (j *SyncJob) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, d := range j.diagnosers {
		if err := d.Diagnose(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("health check failed: %w", errors.Join(errs...))
	}
	return nil
}

func (j *SyncJob) finish(result *SyncResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulSyncs += int64(result.Successful)
	j.metrics.FailedSyncs += int64(result.Failed)
	j.metrics.SkippedSyncs += int64(result.Skipped)
	j.metrics.EventsCached += int64(result.EventsCached)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalRunDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SyncJob) GetMetrics() SyncMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SyncMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulSyncs:  j.metrics.SuccessfulSyncs,
		FailedSyncs:      j.metrics.FailedSyncs,
		SkippedSyncs:     j.metrics.SkippedSyncs,
		EventsCached:     j.metrics.EventsCached,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalRunDuration: j.metrics.TotalRunDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SyncJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_syncs":   m.SuccessfulSyncs,
		"failed_syncs":       m.FailedSyncs,
		"skipped_syncs":      m.SkippedSyncs,
		"events_cached":      m.EventsCached,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_run_duration": m.TotalRunDuration.String(),
	}
}
