package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"github.com/robfig/cron/v3"
)

// SyncJobID is the id of the scheduled sync job. Registering it again
// replaces the previous trigger.
const SyncJobID = "tmdb_sync_job"

// Status describes the scheduler and the last recorded run.
type Status struct {
	Running       bool       `json:"running"`
	LastRunTime   *time.Time `json:"last_run_time"`
	LastRunStatus string     `json:"last_run_status"`
	TotalRuns     int64      `json:"total_runs"`
	NextRunTime   *time.Time `json:"next_run_time"`
	Schedule      string     `json:"schedule"`
}

// Trigger returns the job definition for the configured schedule and a
// human readable description of it. A cron block wins over the interval.
func Trigger(cfg *config.ScheduleConfig) (gocron.JobDefinition, string) {
	if cfg.Cron != nil {
		expr := cfg.Cron.Expression()
		return gocron.CronJob(expr, false), fmt.Sprintf("cron %q (%s)", expr, cfg.Timezone)
	}
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	return gocron.DurationJob(interval), fmt.Sprintf("every %s", interval)
}

// NextTrigger computes when the schedule fires next without a running
// scheduler. Interval schedules count from the last run when there is one.
func NextTrigger(cfg *config.Config, lastRun *time.Time, now time.Time) (time.Time, error) {
	sc := cfg.Schedule
	if sc.Cron != nil {
		schedule, err := cron.ParseStandard(sc.Cron.Expression())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
		}
		return schedule.Next(now.In(cfg.Location())), nil
	}

	interval := time.Duration(sc.IntervalHours) * time.Hour
	if interval <= 0 {
		return time.Time{}, errors.New("no interval configured")
	}
	if lastRun != nil {
		if next := lastRun.Add(interval); next.After(now) {
			return next, nil
		}
	}
	return now.Add(interval), nil
}

// Start registers the sync job and starts triggering it. Runs left in the
// running state by a previous process are marked failed first.
func (e *Engine) Start(ctx context.Context) error {
	if n, err := e.monitor.AbandonRunning(ctx); err != nil {
		log.Warn("Failed to close abandoned runs", "error", err)
	} else if n > 0 {
		log.Warn("Marked abandoned runs as failed", "count", n)
	}

	def, desc := Trigger(e.cfg.Schedule)
	if err := e.scheduler.AddSingletonJob(
		SyncJobID,
		"Catalog sync",
		"Synchronize genres, popular movies and popular shows from the upstream catalog",
		desc,
		def,
		e.runJob,
		e.cfg.Schedule.RunOnStartup,
	); err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}

	e.scheduler.Start()
	return nil
}

func (e *Engine) runJob(ctx context.Context) error {
	_, err := e.RunOnce(ctx)
	return err
}

// TriggerNow starts the sync job outside its schedule. It never overlaps a
// run that is already active.
func (e *Engine) TriggerNow() error {
	if e.Running() {
		return ErrRunInProgress
	}
	return e.scheduler.RunJobNow(SyncJobID)
}

// Stop stops the scheduler and waits for an active run to finish.
func (e *Engine) Stop() error {
	return e.scheduler.Stop()
}

// Status returns the current scheduler state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	status, err := ReadStatus(ctx, e.cfg, e.monitor, time.Now())
	if err != nil {
		return nil, err
	}
	status.Running = e.Running()
	if job, ok := e.scheduler.GetJob(SyncJobID); ok && !job.NextRun.IsZero() {
		next := job.NextRun
		status.NextRunTime = &next
	}
	return status, nil
}

// ReadStatus builds the status from the run monitor and the configured
// schedule. It is used by processes that do not run the scheduler.
func ReadStatus(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, now time.Time) (*Status, error) {
	_, desc := Trigger(cfg.Schedule)
	status := &Status{Schedule: desc}

	last, err := mon.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	if last != nil {
		started := last.StartedAt
		status.LastRunTime = &started
		status.Running = last.Status == monitor.RunStatusRunning
		switch last.Status {
		case monitor.RunStatusFailed:
			status.LastRunStatus = "failed"
			if last.ErrorMessage != nil {
				status.LastRunStatus = "failed: " + *last.ErrorMessage
			}
		default:
			status.LastRunStatus = string(last.Status)
		}
	}

	if status.TotalRuns, err = mon.TotalRuns(ctx); err != nil {
		return nil, err
	}

	if next, err := NextTrigger(cfg, status.LastRunTime, now); err == nil {
		status.NextRunTime = &next
	}
	return status, nil
}
