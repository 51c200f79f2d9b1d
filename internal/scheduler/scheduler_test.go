package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(time.UTC, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRunJobNow_UpdatesStatus(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddSingletonJob("sync", "Sync", "", "every 24h",
		gocron.DurationJob(24*time.Hour),
		func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
		false,
	))
	s.Start()

	job, ok := s.GetJob("sync")
	require.True(t, ok)
	assert.Equal(t, JobStatusScheduled, job.Status)
	assert.False(t, job.NextRun.IsZero())

	require.NoError(t, s.RunJobNow("sync"))
	assert.Eventually(t, func() bool {
		job, _ := s.GetJob("sync")
		return job.Status == JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	job, _ = s.GetJob("sync")
	assert.Equal(t, 1, job.RunCount)
	assert.EqualValues(t, 1, runs.Load())
}

func TestJobFailure(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddSingletonJob("sync", "Sync", "", "every 24h",
		gocron.DurationJob(24*time.Hour),
		func(ctx context.Context) error { return errors.New("upstream down") },
		true,
	))
	s.Start()

	assert.Eventually(t, func() bool {
		job, _ := s.GetJob("sync")
		return job.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	job, _ := s.GetJob("sync")
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, "upstream down", job.LastError)
}

func TestAddSingletonJob_ReplacesExisting(t *testing.T) {
	s := newTestScheduler(t)

	noop := func(ctx context.Context) error { return nil }
	s.Start()
	require.NoError(t, s.AddSingletonJob("sync", "Sync", "", "every 1h", gocron.DurationJob(time.Hour), noop, false))
	require.NoError(t, s.AddSingletonJob("sync", "Sync", "", "every 2h", gocron.DurationJob(2*time.Hour), noop, false))

	jobs := s.GetJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "every 2h", jobs[0].Schedule)
	assert.Len(t, s.gocron.Jobs(), 1)
}

func TestSingleton_NoOverlap(t *testing.T) {
	s := newTestScheduler(t)

	var running, maxRunning, runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.AddSingletonJob("sync", "Sync", "", "every 24h",
		gocron.DurationJob(24*time.Hour),
		func(ctx context.Context) error {
			n := running.Add(1)
			if n > maxRunning.Load() {
				maxRunning.Store(n)
			}
			runs.Add(1)
			<-release
			running.Add(-1)
			return nil
		},
		false,
	))
	s.Start()

	require.NoError(t, s.RunJobNow("sync"))
	assert.Eventually(t, func() bool { return running.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.RunJobNow("sync"))
	time.Sleep(100 * time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool {
		job, _ := s.GetJob("sync")
		return job.Status == JobStatusCompleted && running.Load() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, maxRunning.Load())
}

func TestRunJobNow_UnknownJob(t *testing.T) {
	s := newTestScheduler(t)
	assert.Error(t, s.RunJobNow("missing"))
}
