package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/cache"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/kpi"
	"github.com/jon4hz/catalogsync/internal/metrics"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"github.com/jon4hz/catalogsync/internal/notify/email"
	"github.com/jon4hz/catalogsync/internal/scheduler"
	"github.com/jon4hz/catalogsync/internal/tmdb"
	"github.com/samber/lo"
)

var (
	// ErrRunInProgress is returned when a run is requested while another one is active.
	ErrRunInProgress = errors.New("a sync run is already in progress")
	// ErrRunFatal marks an item failure that aborts the whole run.
	ErrRunFatal = errors.New("fatal sync error")
)

// Alerter notifies operators about failed runs.
type Alerter interface {
	SendFailureAlert(ctx context.Context, alert email.Alert) error
}

// Engine ties a sync run to the run monitor, the KPI aggregator, failure
// alerts and the trigger schedule.
type Engine struct {
	cfg       *config.Config
	db        *database.Client
	monitor   *monitor.Monitor
	sync      *Orchestrator
	kpi       *kpi.Aggregator
	alerts    Alerter
	scheduler *scheduler.Scheduler

	running atomic.Bool
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID  uint              `json:"run_id"`
	RunKey string            `json:"run_key"`
	Status monitor.RunStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	Stats  Stats             `json:"stats"`
	KPI    *kpi.Result       `json:"kpi,omitempty"`
}

// New creates an engine over an opened catalog store and run monitor.
func New(cfg *config.Config, db *database.Client, mon *monitor.Monitor) (*Engine, error) {
	api, err := tmdb.New(cfg.TMDb, cfg.API)
	if err != nil {
		return nil, fmt.Errorf("failed to create tmdb client: %w", err)
	}
	return newEngine(cfg, db, mon, api, email.New(cfg.Monitoring.Email))
}

func newEngine(cfg *config.Config, db *database.Client, mon *monitor.Monitor, api Upstream, alerts Alerter) (*Engine, error) {
	// a run can take hours; shutdown waits for it instead of abandoning it
	sched, err := scheduler.New(cfg.Location(), 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	people := cache.NewPersonCache(cfg.Cache, cfg.DataLimits.PersonCacheSize)

	return &Engine{
		cfg:       cfg,
		db:        db,
		monitor:   mon,
		sync:      NewOrchestrator(cfg, api, db, people, mon),
		kpi:       kpi.New(db),
		alerts:    alerts,
		scheduler: sched,
	}, nil
}

// RunOnce executes one complete sync run and records it in the run monitor.
// The returned error is set when the run failed; the report is returned in
// both cases once the run was recorded.
func (e *Engine) RunOnce(ctx context.Context) (*RunReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	run, err := e.monitor.StartRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	logger := log.With("run", run.RunKey)
	logger.Info("Sync run started", "id", run.ID)

	stats, runErr := e.sync.Run(ctx, run.ID)

	// the run must be sealed even when ctx was canceled
	sealCtx := context.WithoutCancel(ctx)
	status := monitor.RunStatusSuccess
	var errMsg *string
	if runErr != nil {
		status = monitor.RunStatusFailed
		errMsg = lo.ToPtr(runErr.Error())
		if lerr := e.monitor.LogError(sealCtx, run.ID, "run_fatal", runErr.Error(), nil); lerr != nil {
			logger.Error("failed to record run error", "error", lerr)
		}
	}
	if err := e.monitor.EndRun(sealCtx, run.ID, stats.Counters(), status, errMsg); err != nil {
		logger.Error("failed to record run end", "error", err)
	}

	metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	metrics.RunDuration.Observe(stats.Duration.Seconds())
	metrics.LastRunTimestamp.WithLabelValues(string(status)).SetToCurrentTime()

	report := &RunReport{
		RunID:  run.ID,
		RunKey: run.RunKey,
		Status: status,
		Stats:  stats,
	}

	if runErr != nil {
		report.Error = runErr.Error()
		logger.Error("Sync run failed", "error", runErr, "duration", stats.Duration)
		e.alert(sealCtx, run, runErr)
		return report, runErr
	}

	logger.Info("Sync run completed",
		"movies", stats.Movies.Processed,
		"shows", stats.Shows.Processed,
		"people", stats.PeopleSynced,
		"errors", stats.Errors,
		"api_calls", stats.APICalls,
		"duration", stats.Duration)

	if e.cfg.Database.VacuumOnCompletion {
		if err := e.db.Vacuum(ctx); err != nil {
			logger.Warn("Vacuum after run failed", "error", err)
		}
	}

	if e.cfg.KPI.Enabled {
		res, err := e.kpi.Compute(ctx)
		if err != nil {
			logger.Warn("KPI computation finished with errors", "error", err)
		}
		report.KPI = res
	}

	return report, nil
}

func (e *Engine) alert(ctx context.Context, run *monitor.SyncRun, runErr error) {
	if e.alerts == nil {
		return
	}
	hostname, _ := os.Hostname()
	err := e.alerts.SendFailureAlert(ctx, email.Alert{
		RunID:        run.ID,
		RunKey:       run.RunKey,
		StartedAt:    run.StartedAt,
		FailedAt:     time.Now().UTC(),
		ErrorMessage: runErr.Error(),
		Hostname:     hostname,
	})
	if err != nil {
		log.Error("failed to send failure alert", "run", run.RunKey, "error", err)
	}
}

// ComputeKPIs recomputes every KPI category, or only the named one.
func (e *Engine) ComputeKPIs(ctx context.Context, category string) (*kpi.Result, error) {
	if category != "" {
		return e.kpi.ComputeCategory(ctx, category)
	}
	return e.kpi.Compute(ctx)
}

// Running reports whether a run is active in this process.
func (e *Engine) Running() bool {
	return e.running.Load()
}
