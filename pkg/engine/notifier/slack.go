// Package notifier posts a run summary to Slack.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// SlackClient handles Slack notifications.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel
	HTTPClient *http.Client
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAnalysisReport posts the summary of rep. A client without a webhook does nothing.
func (s *SlackClient) SendAnalysisReport(ctx context.Context, rep *model.AnalysisReport) error {
	if s.WebhookURL == "" {
		return nil
	}

	jsonPayload, err := json.Marshal(s.constructPayload(rep))
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}

// constructPayload builds the message blocks.
func (s *SlackClient) constructPayload(rep *model.AnalysisReport) map[string]interface{} {
	sum := rep.Summary

	statusIcon := "🟢"
	switch {
	case sum.OverallStatus == model.StatusFail:
		statusIcon = "🔴"
	case sum.TotalFindings > 0:
		statusIcon = "🟡"
	}

	fields := []map[string]interface{}{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:*\n%s", sum.OverallStatus),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Compliance Score:*\n%d/100", sum.ComplianceScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Findings:*\n%d", sum.TotalFindings),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Estimated Savings:*\n$%s/mo", sum.TotalEstimatedSavings.StringFixed(2)),
		},
	}
	if sum.TotalCost != nil {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Total Cost:*\n$%s", sum.TotalCost.StringFixed(2)),
		})
	}
	if sum.PlannedActions > 0 {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Actions (%s):*\n%d planned, %d applied, %d failed", rep.Mode, sum.PlannedActions, sum.AppliedActions, sum.FailedActions),
		})
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Governance Report: %s", statusIcon, rep.Environment),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Assessment Date:* %s | *Run:* %s", rep.AssessmentDate, rep.RunID),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}

	if len(rep.PriorityActions) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": "*Top priority:* " + rep.PriorityActions[0],
			},
		})
	}

	payload := map[string]interface{}{
		"blocks": blocks,
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return payload
}
