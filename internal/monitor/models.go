package monitor

import "time"

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// SyncRun is one orchestrator invocation. It is created running and sealed
// exactly once with a terminal status.
type SyncRun struct {
	ID              uint       `gorm:"primaryKey" json:"run_id"`
	RunKey          string     `gorm:"not null;uniqueIndex" json:"run_key"`
	StartedAt       time.Time  `gorm:"not null;index" json:"start_time"`
	EndedAt         *time.Time `json:"end_time"`
	DurationSeconds *float64   `json:"duration_seconds"`
	Status          RunStatus  `gorm:"type:text;not null;index" json:"status"`
	ErrorMessage    *string    `json:"error_message"`
	Counters        `gorm:"embedded"`
}

// Counters is the outcome snapshot written when a run ends.
type Counters struct {
	MoviesProcessed int   `json:"movies_processed"`
	MoviesInserted  int   `json:"movies_inserted"`
	MoviesUpdated   int   `json:"movies_updated"`
	MoviesSkipped   int   `json:"movies_skipped"`
	ShowsProcessed  int   `json:"shows_processed"`
	ShowsInserted   int   `json:"shows_inserted"`
	ShowsUpdated    int   `json:"shows_updated"`
	ShowsSkipped    int   `json:"shows_skipped"`
	GenresSynced    int   `json:"genres_synced"`
	PeopleSynced    int   `json:"people_synced"`
	APICalls        int64 `json:"api_calls"`
	Errors          int   `json:"errors"`
}

// SyncError is an append-only error event of a run.
type SyncError struct {
	ID        uint      `gorm:"primaryKey" json:"error_id"`
	RunID     uint      `gorm:"not null;index" json:"run_id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	ErrorType string    `gorm:"not null;index" json:"error_type"`
	Message   string    `json:"error_message"`
	Detail    *string   `json:"detail,omitempty"`
}

// Statistics aggregates the runs of a trailing window.
type Statistics struct {
	Days                 int      `json:"days"`
	TotalRuns            int64    `json:"total_runs"`
	SuccessfulRuns       int64    `json:"successful_runs"`
	FailedRuns           int64    `json:"failed_runs"`
	AvgDurationSeconds   *float64 `json:"avg_duration"`
	TotalMoviesProcessed int64    `json:"total_movies_processed"`
	TotalShowsProcessed  int64    `json:"total_shows_processed"`
	TotalAPICalls        int64    `json:"total_api_calls"`
	TotalErrors          int64    `json:"total_errors"`
}

// SuccessRate returns the share of successful runs in percent.
func (s *Statistics) SuccessRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessfulRuns) / float64(s.TotalRuns) * 100
}

// ErrorTypeCount is the frequency of one error type.
type ErrorTypeCount struct {
	ErrorType      string    `json:"error_type"`
	Count          int64     `json:"count"`
	LastOccurrence time.Time `json:"last_occurrence"`
}

// Report is the exported snapshot of the metrics store.
type Report struct {
	RecentRuns    []SyncRun        `json:"recent_runs"`
	Statistics7d  *Statistics      `json:"statistics_7d"`
	Statistics30d *Statistics      `json:"statistics_30d"`
	ErrorSummary  []ErrorTypeCount `json:"error_summary"`
	ExportedAt    time.Time        `json:"exported_at"`
}
