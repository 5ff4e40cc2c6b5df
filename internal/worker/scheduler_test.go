package worker_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/worker"
)

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	job := worker.NewSyncJob(worker.SyncJobConfig{Logger: zerolog.Nop()})

	_, err := worker.NewScheduler(job, "every now and then", zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Fetcher:     newFakeFetcher(),
		Connections: calendar.NewInMemoryConnectionRepository(),
		Logger:      zerolog.Nop(),
	})

	s, err := worker.NewScheduler(job, "", zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
