// Package notify delivers a one-line run summary through Shoutrrr once a
// report finishes, adapted from the teacher's scan-completion notifier
// (internal/notification/notification.go) to LogJuicer's anomaly counts
// instead of a container scan digest.
package notify

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"

	"github.com/logjuicer/logjuicer/internal/config"
	"github.com/logjuicer/logjuicer/internal/report"
)

// Notifier sends a report summary via a Shoutrrr service URL
// (slack://, discord://, ... — see https://containrrr.dev/shoutrrr).
type Notifier struct {
	enabled bool
	url     string
}

// New builds a Notifier from cfg.Notification. Disabled notifiers are
// always safe to call Send on; Send is then a no-op.
func New(cfg config.NotificationConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return &Notifier{enabled: false}, nil
	}
	url := strings.TrimSpace(cfg.ShoutrrrURL)
	if url == "" {
		return nil, fmt.Errorf("notification enabled but shoutrrr_url not configured: provide URL in format 'service://credentials' (e.g., slack://token@channel)")
	}
	return &Notifier{enabled: true, url: url}, nil
}

// IsEnabled reports whether notifications will actually be sent.
func (n *Notifier) IsEnabled() bool {
	return n != nil && n.enabled
}

// Send delivers r's summary. It is a no-op on a disabled Notifier.
func (n *Notifier) Send(r report.Report) error {
	if !n.IsEnabled() {
		return nil
	}
	msg := summarize(r)
	if err := shoutrrr.Send(n.url, msg); err != nil {
		service := "unknown"
		if idx := strings.Index(n.url, "://"); idx > 0 {
			service = n.url[:idx]
		}
		return fmt.Errorf("notification failed to send via %s: %w", service, err)
	}
	return nil
}

func summarize(r report.Report) string {
	var sb strings.Builder
	sb.WriteString("LogJuicer run complete: ")
	sb.WriteString(r.Target)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%d anomalies across %d lines", r.TotalAnomalyCount, r.TotalLineCount)
	if len(r.UnknownFiles) > 0 {
		fmt.Fprintf(&sb, ", %d unknown files", len(r.UnknownFiles))
	}
	if len(r.ReadErrors) > 0 {
		fmt.Fprintf(&sb, ", %d read errors", len(r.ReadErrors))
	}
	return sb.String()
}
