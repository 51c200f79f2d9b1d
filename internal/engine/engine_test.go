package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"github.com/jon4hz/catalogsync/internal/notify/email"
	"github.com/jon4hz/catalogsync/internal/tmdb"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []email.Alert
}

func (r *recordingAlerter) SendFailureAlert(_ context.Context, alert email.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// catalogServer is an upstream fixture serving three popular movies.
// Movie ids listed in failing answer with the given status.
func catalogServer(t *testing.T, failing map[int]int) *httptest.Server {
	t.Helper()

	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /genre/movie/list", func(w http.ResponseWriter, _ *http.Request) {
		write(w, map[string]any{"genres": []tmdb.Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}}})
	})
	mux.HandleFunc("GET /genre/tv/list", func(w http.ResponseWriter, _ *http.Request) {
		write(w, map[string]any{"genres": []tmdb.Genre{{ID: 18, Name: "Drama"}}})
	})
	mux.HandleFunc("GET /movie/popular", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p := tmdb.Page[tmdb.Summary]{Page: page, TotalPages: 1}
		if page == 1 {
			p.Results = []tmdb.Summary{{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}, {ID: 3, Title: "Three"}}
		}
		write(w, p)
	})
	mux.HandleFunc("GET /tv/popular", func(w http.ResponseWriter, r *http.Request) {
		write(w, tmdb.Page[tmdb.Summary]{Page: 1, TotalPages: 1})
	})
	mux.HandleFunc("GET /movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		require.NoError(t, err)
		if status, ok := failing[id]; ok {
			w.WriteHeader(status)
			return
		}
		write(w, tmdb.MovieDetail{
			ID:          id,
			Title:       fmt.Sprintf("Movie %d", id),
			Overview:    "Overview",
			ReleaseDate: "2024-05-01",
			VoteAverage: 6.5,
			VoteCount:   42,
			Popularity:  12.5,
			Genres:      []tmdb.Genre{{ID: 28, Name: "Action"}},
			Credits: tmdb.Credits{Cast: []tmdb.CastMember{
				{ID: 100 + id, Name: fmt.Sprintf("Actor %d", id), Character: "Lead"},
			}},
		})
	})
	mux.HandleFunc("GET /person/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		write(w, tmdb.PersonDetail{ID: id, Biography: "Bio"})
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

type engineFixture struct {
	engine  *Engine
	db      *database.Client
	monitor *monitor.Monitor
	alerts  *recordingAlerter
}

func newEngineFixture(t *testing.T, server *httptest.Server, mutate func(*config.Config)) *engineFixture {
	t.Helper()

	cfg := testConfig(t)
	cfg.TMDb.BaseURL = server.URL
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.New(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mon, err := monitor.New(cfg.Monitoring.MetricsDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mon.Close() })

	api, err := tmdb.New(cfg.TMDb, cfg.API)
	require.NoError(t, err)

	alerts := &recordingAlerter{}
	e, err := newEngine(cfg, db, mon, api, alerts)
	require.NoError(t, err)

	return &engineFixture{engine: e, db: db, monitor: mon, alerts: alerts}
}

func TestRunOnce_Success(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, catalogServer(t, nil), nil)

	report, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.RunStatusSuccess, report.Status)
	assert.Equal(t, 3, report.Stats.Movies.Inserted)
	assert.Equal(t, 3, report.Stats.GenresSynced)
	require.NotNil(t, report.KPI)
	assert.Positive(t, report.KPI.Computed)

	run, err := f.monitor.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, monitor.RunStatusSuccess, run.Status)
	assert.Equal(t, 3, run.MoviesProcessed)
	assert.Equal(t, 3, run.MoviesInserted)
	assert.Equal(t, 3, run.PeopleSynced)
	assert.Positive(t, run.APICalls)
	assert.NotNil(t, run.EndedAt)
	assert.Empty(t, f.alerts.alerts)

	report, err = f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.Movies.Updated)
	assert.Zero(t, report.Stats.Movies.Inserted)

	counts, err := f.db.GetCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts.Movies)
	assert.EqualValues(t, 3, counts.People)

	status, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", status.LastRunStatus)
	assert.EqualValues(t, 2, status.TotalRuns)
	assert.False(t, status.Running)
	assert.NotNil(t, status.NextRunTime)
}

func TestRunOnce_PartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, catalogServer(t, map[int]int{2: http.StatusInternalServerError}), nil)

	report, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.RunStatusSuccess, report.Status)
	assert.Equal(t, EntityStats{Processed: 3, Inserted: 2, Errors: 1}, report.Stats.Movies)

	errs, err := f.monitor.RunErrors(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "movie_processing", errs[0].ErrorType)
	assert.Contains(t, *errs[0].Detail, "id=2")

	counts, err := f.db.GetCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.Movies)
}

func TestRunOnce_FailureSendsAlert(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, catalogServer(t, nil), func(c *config.Config) {
		c.TMDb.APIKey = "wrong-key"
	})

	report, err := f.engine.RunOnce(ctx)
	require.Error(t, err)
	assert.True(t, tmdb.IsFatal(err))
	require.NotNil(t, report)
	assert.Equal(t, monitor.RunStatusFailed, report.Status)
	assert.Nil(t, report.KPI)

	run, err := f.monitor.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, monitor.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "genre sync failed")

	errs, err := f.monitor.RunErrors(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "run_fatal", errs[0].ErrorType)

	require.Len(t, f.alerts.alerts, 1)
	assert.Equal(t, report.RunKey, f.alerts.alerts[0].RunKey)
	assert.Contains(t, f.alerts.alerts[0].ErrorMessage, "401")

	status, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status.LastRunStatus, "failed: ")
}

func TestRunOnce_RejectsOverlap(t *testing.T) {
	f := newEngineFixture(t, catalogServer(t, nil), nil)
	f.engine.running.Store(true)

	_, err := f.engine.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
	require.ErrorIs(t, f.engine.TriggerNow(), ErrRunInProgress)

	total, err := f.monitor.TotalRuns(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStart_SchedulesSingleJob(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, catalogServer(t, nil), func(c *config.Config) {
		c.Schedule.Cron = &config.CronConfig{Minute: "0", Hour: "3", DayOfWeek: "*"}
	})

	// a run left behind by a crashed process
	stale, err := f.monitor.StartRun(ctx)
	require.NoError(t, err)

	require.NoError(t, f.engine.Start(ctx))
	t.Cleanup(func() { _ = f.engine.Stop() })

	job, ok := f.engine.scheduler.GetJob(SyncJobID)
	require.True(t, ok)
	assert.True(t, job.Singleton)
	assert.Contains(t, job.Schedule, "0 3 * * *")
	assert.Equal(t, 3, job.NextRun.UTC().Hour())
	assert.Len(t, f.engine.scheduler.GetJobs(), 1)

	run, err := f.monitor.GetRun(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, monitor.RunStatusFailed, run.Status)
}

func TestNextTrigger(t *testing.T) {
	now := time.Date(2026, 10, 16, 1, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule *config.ScheduleConfig
		lastRun  *time.Time
		want     time.Time
	}{
		{
			name:     "cron later today",
			schedule: &config.ScheduleConfig{Cron: &config.CronConfig{Minute: "0", Hour: "3", DayOfWeek: "*"}, Timezone: "UTC"},
			want:     time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "cron on sunday",
			schedule: &config.ScheduleConfig{Cron: &config.CronConfig{Minute: "15", Hour: "2", DayOfWeek: "0"}, Timezone: "UTC"},
			want:     time.Date(2026, 10, 18, 2, 15, 0, 0, time.UTC),
		},
		{
			name:     "interval without runs",
			schedule: &config.ScheduleConfig{IntervalHours: 6, Timezone: "UTC"},
			want:     now.Add(6 * time.Hour),
		},
		{
			name:     "interval after last run",
			schedule: &config.ScheduleConfig{IntervalHours: 6, Timezone: "UTC"},
			lastRun:  lo.ToPtr(now.Add(-time.Hour)),
			want:     now.Add(5 * time.Hour),
		},
		{
			name:     "interval overdue",
			schedule: &config.ScheduleConfig{IntervalHours: 6, Timezone: "UTC"},
			lastRun:  lo.ToPtr(now.Add(-10 * time.Hour)),
			want:     now.Add(6 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Schedule: tt.schedule}
			got, err := NextTrigger(cfg, tt.lastRun, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}
