// Package slack sends triage escalation notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/triageq/internal/triage"
)

const (
	maxReasonsLen = 1000
	httpTimeout   = 10 * time.Second
)

// Notifier sends escalations to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts an escalated snapshot to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, snap *triage.Snapshot) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(snap))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(s *triage.Snapshot) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(s),
			{"type": "divider"},
			vitalsBlock(s),
			{"type": "divider"},
			reasonsBlock(s),
			contextBlock(s),
		},
	}
}

func headerBlock(s *triage.Snapshot) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Triage escalated: %s", classEmoji(s.Triage.Class), s.Triage.Class),
		},
	}
}

func vitalsBlock(s *triage.Snapshot) map[string]any {
	v := s.Vitals
	field := func(label, value string) map[string]any {
		return map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s:* %s", label, value)}
	}

	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			field("HR", fmt.Sprintf("%.0f bpm", v.HR)),
			field("SpO2", fmt.Sprintf("%.0f%%", v.SpO2)),
			field("RR", fmt.Sprintf("%.0f /min", v.RR)),
			field("PI", fmt.Sprintf("%.2f%%", v.PI)),
			field("BFI tau", fmt.Sprintf("%.0f µs", v.TauUS)),
			field("Signal trust", fmt.Sprintf("%.0f", v.SignalTrust)),
		},
	}
}

func reasonsBlock(s *triage.Snapshot) map[string]any {
	text := truncate(strings.Join(s.Triage.Reasons, ", "), maxReasonsLen)
	if text == "" {
		text = "_No reasons given._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reasons*\n%s", text),
		},
	}
}

func contextBlock(s *triage.Snapshot) map[string]any {
	sec, frac := math.Modf(s.Timestamp)
	ts := time.Unix(int64(sec), int64(frac*float64(time.Second)))

	profile := s.Profile
	if profile == "" {
		profile = "unknown"
	}

	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("triageq • profile %s • %s", profile, ts.UTC().Format("2006-01-02 15:04:05 UTC")),
			},
		},
	}
}

func classEmoji(c triage.Class) string {
	switch c {
	case triage.ClassImmediate:
		return "\U0001f534" // red circle
	case triage.ClassDelayed:
		return "\U0001f7e1" // yellow circle
	case triage.ClassAssess:
		return "⚪" // white circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
