package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	path := writeConfig(t, `
tmdb:
  api_key: " secret "
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.TMDb.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.TMDb.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.API.RequestDelay)
	assert.Equal(t, 100, cfg.DataLimits.Movies)
	assert.Equal(t, 50, cfg.DataLimits.Shows)
	assert.Equal(t, 25, cfg.DataLimits.MaxCast)
	assert.Equal(t, 10, cfg.DataLimits.EpisodesPerSeason)
	assert.Equal(t, 24, cfg.Schedule.IntervalHours)
	assert.Nil(t, cfg.Schedule.Cron)
	assert.True(t, cfg.KPI.Enabled)
	assert.True(t, cfg.Database.EnableWAL)
	assert.Equal(t, 30*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "from-env")
	t.Setenv("CATALOGSYNC_DATA_LIMITS_MOVIES", "7")
	t.Setenv("CATALOGSYNC_SCHEDULE_CRON_HOUR", "3")

	path := writeConfig(t, "listen: 127.0.0.1:9999\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TMDb.APIKey)
	assert.Equal(t, 7, cfg.DataLimits.Movies)
	require.NotNil(t, cfg.Schedule.Cron)
	assert.Equal(t, "0 3 * * *", cfg.Schedule.Cron.Expression())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing api key",
			body:    "listen: 127.0.0.1:3003\n",
			wantErr: "tmdb api key is required",
		},
		{
			name: "alerts without smtp host",
			body: `
tmdb:
  api_key: k
monitoring:
  email_alerts: true
`,
			wantErr: "SMTP host is required",
		},
		{
			name: "redis without url",
			body: `
tmdb:
  api_key: k
cache:
  type: redis
`,
			wantErr: "redis URL is required",
		},
		{
			name: "no trigger",
			body: `
tmdb:
  api_key: k
schedule:
  interval_hours: 0
`,
			wantErr: "interval_hours > 0 or a cron block",
		},
		{
			name: "bad timezone",
			body: `
tmdb:
  api_key: k
schedule:
  timezone: Mars/Olympus
`,
			wantErr: "invalid schedule timezone",
		},
		{
			name: "zero retries",
			body: `
tmdb:
  api_key: k
api:
  max_retries: 0
`,
			wantErr: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TMDB_API_KEY", "")
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_CronSanitized(t *testing.T) {
	path := writeConfig(t, `
tmdb:
  api_key: k
schedule:
  cron:
    minute: "30"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Schedule.Cron)
	assert.Equal(t, "30 0 * * *", cfg.Schedule.Cron.Expression())
}
