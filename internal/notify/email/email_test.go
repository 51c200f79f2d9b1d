package email

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmailBody(t *testing.T) {
	n := New(&config.EmailConfig{Enabled: true})
	started := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)

	body, err := n.generateEmailBody(Alert{
		RunID:        42,
		RunKey:       "b1946ac9",
		StartedAt:    started,
		FailedAt:     started.Add(5 * time.Minute),
		ErrorMessage: "genre sync failed: <401>",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Catalog sync run 42 failed")
	assert.Contains(t, body, "b1946ac9")
	assert.Contains(t, body, "Fri, 16 Oct 2026 03:00:00 UTC")
	assert.Contains(t, body, "genre sync failed: &lt;401&gt;")
	assert.NotContains(t, body, "Host")
}

func TestSendFailureAlert_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.EmailConfig
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled", cfg: &config.EmailConfig{Enabled: false, SMTPHost: "localhost"}},
		{name: "no recipient", cfg: &config.EmailConfig{Enabled: true, SMTPHost: "localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.cfg).SendFailureAlert(context.Background(), Alert{RunID: 1})
			assert.NoError(t, err)
		})
	}
}

func TestSendFailureAlert_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := New(&config.EmailConfig{Enabled: true, SMTPHost: "localhost", SMTPPort: 25, AlertEmail: "ops@example.com"})
	assert.ErrorIs(t, n.SendFailureAlert(ctx, Alert{RunID: 1}), context.Canceled)
}
