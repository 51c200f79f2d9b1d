package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/jon4hz/catalogsync/internal/kpi"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *database.Client
	monitor *monitor.Monitor
	router  http.Handler
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctx = context.Background()
	dir := s.T().TempDir()

	cfg := &config.Config{
		Listen: "127.0.0.1:0",
		TMDb:   &config.TMDbConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"},
		API: &config.APIConfig{
			Timeout:         time.Second,
			MaxRetries:      1,
			BreakerFailures: 1,
			BreakerTimeout:  time.Minute,
		},
		DataLimits:  &config.DataLimitsConfig{PersonCacheSize: 10},
		DataQuality: &config.DataQualityConfig{},
		Schedule:    &config.ScheduleConfig{IntervalHours: 12, Timezone: "UTC"},
		Monitoring: &config.MonitoringConfig{
			EnableMetrics: true,
			MetricsDBPath: filepath.Join(dir, "metrics.db"),
			Email:         &config.EmailConfig{},
		},
		KPI:      &config.KPIConfig{},
		Database: &config.DatabaseConfig{Path: filepath.Join(dir, "catalog.db"), BusyTimeout: time.Second},
		Cache:    &config.CacheConfig{Type: config.CacheTypeMemory},
	}

	db, err := database.New(cfg.Database)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.db = db

	mon, err := monitor.New(cfg.Monitoring.MetricsDBPath)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = mon.Close() })
	s.monitor = mon

	e, err := engine.New(cfg, db, mon)
	s.Require().NoError(err)

	srv, err := New(cfg, e, mon, db)
	s.Require().NoError(err)
	s.router = srv.Handler()
}

func (s *ServerTestSuite) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *ServerTestSuite) seedRun(status monitor.RunStatus, msg *string) *monitor.SyncRun {
	run, err := s.monitor.StartRun(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.monitor.EndRun(s.ctx, run.ID, monitor.Counters{MoviesProcessed: 3}, status, msg))
	return run
}

func (s *ServerTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"ok"`)
}

func (s *ServerTestSuite) TestStatus() {
	s.seedRun(monitor.RunStatusFailed, lo.ToPtr("boom"))

	rec := s.do(http.MethodGet, "/api/status")
	s.Require().Equal(http.StatusOK, rec.Code)

	var status engine.Status
	s.decode(rec, &status)
	s.Equal("failed: boom", status.LastRunStatus)
	s.EqualValues(1, status.TotalRuns)
	s.False(status.Running)
	s.NotNil(status.NextRunTime)
	s.Equal("every 12h0m0s", status.Schedule)
}

func (s *ServerTestSuite) TestRuns() {
	first := s.seedRun(monitor.RunStatusSuccess, nil)
	s.seedRun(monitor.RunStatusSuccess, nil)
	s.Require().NoError(s.monitor.LogError(s.ctx, first.ID, "movie_processing", "not found", nil))

	rec := s.do(http.MethodGet, "/api/runs?limit=1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var list struct {
		Runs []monitor.SyncRun `json:"runs"`
	}
	s.decode(rec, &list)
	s.Len(list.Runs, 1)

	rec = s.do(http.MethodGet, "/api/runs/"+strconv.FormatUint(uint64(first.ID), 10))
	s.Require().Equal(http.StatusOK, rec.Code)
	var detail struct {
		Run    monitor.SyncRun     `json:"run"`
		Errors []monitor.SyncError `json:"errors"`
	}
	s.decode(rec, &detail)
	s.Equal(first.RunKey, detail.Run.RunKey)
	s.Len(detail.Errors, 1)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/runs/999").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/runs/abc").Code)
}

func (s *ServerTestSuite) TestQueryValidation() {
	tests := []struct {
		target string
		want   int
	}{
		{"/api/runs?limit=0", http.StatusBadRequest},
		{"/api/runs?limit=-3", http.StatusBadRequest},
		{"/api/runs?limit=ten", http.StatusBadRequest},
		{"/api/runs?limit=5000", http.StatusOK},
		{"/api/stats?days=30", http.StatusOK},
		{"/api/stats?days=x", http.StatusBadRequest},
		{"/api/errors", http.StatusOK},
	}
	for _, tt := range tests {
		s.Run(tt.target, func() {
			s.Equal(tt.want, s.do(http.MethodGet, tt.target).Code)
		})
	}
}

func (s *ServerTestSuite) TestStatistics() {
	s.seedRun(monitor.RunStatusSuccess, nil)
	s.seedRun(monitor.RunStatusFailed, lo.ToPtr("boom"))

	rec := s.do(http.MethodGet, "/api/stats?days=7")
	s.Require().Equal(http.StatusOK, rec.Code)
	var body struct {
		Statistics  monitor.Statistics `json:"statistics"`
		SuccessRate float64            `json:"success_rate"`
	}
	s.decode(rec, &body)
	s.EqualValues(2, body.Statistics.TotalRuns)
	s.InDelta(50.0, body.SuccessRate, 0.001)
}

func (s *ServerTestSuite) TestKPIs() {
	now := time.Now().UTC()
	s.Require().NoError(s.db.UpsertKPI(s.ctx, kpi.CategoryPlatformStats, "overall_counts", map[string]int{"users": 4}, now))

	rec := s.do(http.MethodGet, "/api/kpis/"+kpi.CategoryPlatformStats)
	s.Require().Equal(http.StatusOK, rec.Code)
	var body struct {
		KPIs []struct {
			Name  string         `json:"name"`
			Value map[string]int `json:"value"`
		} `json:"kpis"`
	}
	s.decode(rec, &body)
	s.Require().Len(body.KPIs, 1)
	s.Equal(4, body.KPIs[0].Value["users"])

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/kpis/unknown").Code)
}

func (s *ServerTestSuite) TestMetrics() {
	rec := s.do(http.MethodGet, "/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), "catalogsync_"))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	assert.Error(t, err)
}

