package calendar

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultAuthCheckSchedule polls provider sessions every 30 seconds.
const DefaultAuthCheckSchedule = "@every 30s"

// AuthMonitorConfig holds configuration for the auth monitor.
type AuthMonitorConfig struct {
	Manager *ConnectionManager
	// Schedule is a cron expression. Default: DefaultAuthCheckSchedule.
	Schedule string
	Logger   zerolog.Logger
}

// AuthMonitor periodically expires providers whose sessions ended.
type AuthMonitor struct {
	manager *ConnectionManager
	cron    *cron.Cron
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAuthMonitor creates a stopped monitor.
func NewAuthMonitor(cfg AuthMonitorConfig) (*AuthMonitor, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultAuthCheckSchedule
	}

	logger := cfg.Logger.With().Str("component", "auth_monitor").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	m := &AuthMonitor{
		manager: cfg.Manager,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}

	if _, err := m.cron.AddFunc(schedule, func() { m.Check(m.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling auth check %q: %w", schedule, err)
	}

	return m, nil
}

// Start begins polling.
func (m *AuthMonitor) Start() {
	m.logger.Info().Msg("starting calendar auth monitor")
	m.cron.Start()
}

// Stop halts polling and waits for a running check to finish.
func (m *AuthMonitor) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
	m.logger.Info().Msg("calendar auth monitor stopped")
}

// Check runs one poll and returns the sources that expired.
func (m *AuthMonitor) Check(ctx context.Context) []Source {
	return m.manager.CheckAuth(ctx)
}
