// Package worker provides background calendar sync for eventdesk.
package worker

import (
	"time"
)

// DefaultSyncSchedule runs a calendar sync every 15 minutes.
const DefaultSyncSchedule = "@every 15m"

// SyncConfig holds configuration for the calendar sync job.
type SyncConfig struct {
	// Concurrency is the number of connections synced in parallel.
	// Default: 2
	Concurrency int

	// Timeout bounds the sync of a single connection.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultSyncConfig returns the default sync configuration.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Concurrency: 2,
		Timeout:     30 * time.Second,
	}
}

func (c SyncConfig) withDefaults() SyncConfig {
	d := DefaultSyncConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
