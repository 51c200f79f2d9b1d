// Package monitor records the lifecycle and outcome of sync runs in a store
// separate from the catalog.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRunSealed is returned when ending a run that already has a terminal status.
var ErrRunSealed = errors.New("run already finished")

// Monitor writes run records to the metrics store.
type Monitor struct {
	db  *gorm.DB
	now func() time.Time
}

// New opens the metrics store at path and performs migrations.
func New(path string) (*Monitor, error) {
	if path == "" {
		return nil, fmt.Errorf("metrics database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(10000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect metrics database: %w", err)
	}
	if err := db.AutoMigrate(&SyncRun{}, &SyncError{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metrics database: %w", err)
	}

	return &Monitor{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the metrics store.
func (m *Monitor) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartRun creates a running run record.
func (m *Monitor) StartRun(ctx context.Context) (*SyncRun, error) {
	run := SyncRun{
		RunKey:    uuid.NewString(),
		StartedAt: m.now(),
		Status:    RunStatusRunning,
	}
	if err := m.db.WithContext(ctx).Create(&run).Error; err != nil {
		log.Error("failed to start run", "error", err)
		return nil, err
	}
	return &run, nil
}

// EndRun seals a run with its counters and a terminal status.
func (m *Monitor) EndRun(ctx context.Context, runID uint, counters Counters, status RunStatus, errorMessage *string) error {
	if !status.Terminal() {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run SyncRun
		if err := tx.First(&run, runID).Error; err != nil {
			return fmt.Errorf("failed to load run %d: %w", runID, err)
		}
		if run.Status.Terminal() {
			return ErrRunSealed
		}

		end := m.now()
		duration := end.Sub(run.StartedAt).Seconds()
		run.EndedAt = &end
		run.DurationSeconds = &duration
		run.Status = status
		run.ErrorMessage = errorMessage
		run.Counters = counters

		if err := tx.Save(&run).Error; err != nil {
			log.Error("failed to end run", "run", runID, "error", err)
			return err
		}
		return nil
	})
}

// LogError appends an error event to a run.
func (m *Monitor) LogError(ctx context.Context, runID uint, errorType, message string, detail *string) error {
	rec := SyncError{
		RunID:     runID,
		Timestamp: m.now(),
		ErrorType: errorType,
		Message:   message,
		Detail:    detail,
	}
	if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Error("failed to log sync error", "run", runID, "error", err)
		return err
	}
	return nil
}

// AbandonRunning fails runs left running by a previous process.
func (m *Monitor) AbandonRunning(ctx context.Context) (int64, error) {
	msg := "interrupted before completion"
	res := m.db.WithContext(ctx).Model(&SyncRun{}).
		Where("status = ?", RunStatusRunning).
		Updates(map[string]any{
			"status":        RunStatusFailed,
			"ended_at":      m.now(),
			"error_message": msg,
		})
	return res.RowsAffected, res.Error
}

// RecentRuns returns at most limit runs, newest first.
func (m *Monitor) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	var runs []SyncRun
	if err := m.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		log.Error("failed to get recent runs", "error", err)
		return nil, err
	}
	return runs, nil
}

// LastRun returns the newest run, or nil when none was recorded.
func (m *Monitor) LastRun(ctx context.Context) (*SyncRun, error) {
	runs, err := m.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// GetRun returns a run by id.
func (m *Monitor) GetRun(ctx context.Context, runID uint) (*SyncRun, error) {
	var run SyncRun
	if err := m.db.WithContext(ctx).First(&run, runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// RunErrors returns the error events of a run in insertion order.
func (m *Monitor) RunErrors(ctx context.Context, runID uint) ([]SyncError, error) {
	var errs []SyncError
	err := m.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&errs).Error
	return errs, err
}

// TotalRuns returns the number of recorded runs.
func (m *Monitor) TotalRuns(ctx context.Context) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&SyncRun{}).Count(&n).Error
	return n, err
}

// Statistics aggregates the runs started within the last days.
func (m *Monitor) Statistics(ctx context.Context, days int) (*Statistics, error) {
	cutoff := m.now().AddDate(0, 0, -days)

	stats := Statistics{Days: days}
	err := m.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_runs,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS successful_runs,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed_runs,
			AVG(duration_seconds) AS avg_duration_seconds,
			COALESCE(SUM(movies_processed), 0) AS total_movies_processed,
			COALESCE(SUM(shows_processed), 0) AS total_shows_processed,
			COALESCE(SUM(api_calls), 0) AS total_api_calls,
			COALESCE(SUM(errors), 0) AS total_errors
		FROM sync_runs
		WHERE started_at >= ?
	`, RunStatusSuccess, RunStatusFailed, cutoff).Scan(&stats).Error
	if err != nil {
		log.Error("failed to get run statistics", "error", err)
		return nil, err
	}
	stats.Days = days
	return &stats, nil
}

// ErrorSummary returns error type frequencies within the last days, most
// frequent first.
func (m *Monitor) ErrorSummary(ctx context.Context, days int) ([]ErrorTypeCount, error) {
	cutoff := m.now().AddDate(0, 0, -days)
	db := m.db.WithContext(ctx)

	var counts []struct {
		ErrorType string
		Count     int64
	}
	if err := db.Model(&SyncError{}).
		Select("error_type, COUNT(*) AS count").
		Where("timestamp >= ?", cutoff).
		Group("error_type").
		Order("count DESC, error_type").
		Scan(&counts).Error; err != nil {
		log.Error("failed to get error summary", "error", err)
		return nil, err
	}

	summary := make([]ErrorTypeCount, 0, len(counts))
	for _, c := range counts {
		var latest SyncError
		if err := db.Where("error_type = ?", c.ErrorType).
			Order("timestamp DESC").
			First(&latest).Error; err != nil {
			return nil, err
		}
		summary = append(summary, ErrorTypeCount{
			ErrorType:      c.ErrorType,
			Count:          c.Count,
			LastOccurrence: latest.Timestamp,
		})
	}
	return summary, nil
}

// Report builds the exported metrics snapshot.
func (m *Monitor) Report(ctx context.Context) (*Report, error) {
	runs, err := m.RecentRuns(ctx, 20)
	if err != nil {
		return nil, err
	}
	week, err := m.Statistics(ctx, 7)
	if err != nil {
		return nil, err
	}
	month, err := m.Statistics(ctx, 30)
	if err != nil {
		return nil, err
	}
	errs, err := m.ErrorSummary(ctx, 7)
	if err != nil {
		return nil, err
	}
	return &Report{
		RecentRuns:    runs,
		Statistics7d:  week,
		Statistics30d: month,
		ErrorSummary:  errs,
		ExportedAt:    m.now(),
	}, nil
}

// Export writes the metrics snapshot as indented JSON.
func (m *Monitor) Export(ctx context.Context, w io.Writer) error {
	report, err := m.Report(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
