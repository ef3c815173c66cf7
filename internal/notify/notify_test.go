package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logjuicer/logjuicer/internal/config"
	"github.com/logjuicer/logjuicer/internal/report"
)

func TestNew_Disabled(t *testing.T) {
	n, err := New(config.NotificationConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, n.IsEnabled())
	assert.NoError(t, n.Send(report.Report{}))
}

func TestNew_EnabledWithoutURL(t *testing.T) {
	_, err := New(config.NotificationConfig{Enabled: true})
	require.Error(t, err)
}

func TestNew_EnabledWithURL(t *testing.T) {
	n, err := New(config.NotificationConfig{Enabled: true, ShoutrrrURL: "generic+https://example.invalid/hook"})
	require.NoError(t, err)
	assert.True(t, n.IsEnabled())
}

func TestSummarize(t *testing.T) {
	r := report.Report{
		Target:            "check-tempest",
		CreatedAt:         time.Now(),
		TotalLineCount:    1000,
		TotalAnomalyCount: 3,
		UnknownFiles:      []report.UnknownFile{{Name: "metrics"}},
	}
	msg := summarize(r)
	assert.Contains(t, msg, "check-tempest")
	assert.Contains(t, msg, "3 anomalies")
	assert.Contains(t, msg, "1 unknown files")
}
