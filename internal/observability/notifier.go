package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// webhookNotifier posts alert summaries to an incoming webhook that accepts
// Slack block messages.
type webhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a Notifier that sends alerts to the given webhook URL.
func NewWebhookNotifier(webhookURL string) Notifier {
	return &webhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookMessage struct {
	Text   string         `json:"text"`
	Blocks []messageBlock `json:"blocks"`
}

type messageBlock struct {
	Type string       `json:"type"`
	Text *messageText `json:"text,omitempty"`
}

type messageText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends the given alerts to the configured webhook.
// It returns nil without making a request if the alerts slice is empty.
func (n *webhookNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildMessage(alerts))
	if err != nil {
		return fmt.Errorf("marshaling webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildMessage(alerts []Alert) webhookMessage {
	msg := webhookMessage{
		Text: fmt.Sprintf("swf: %d workflow alert(s)", len(alerts)),
		Blocks: []messageBlock{
			{
				Type: "header",
				Text: &messageText{Type: "plain_text", Text: "swf Alert Summary"},
			},
		},
	}

	for i, alert := range alerts {
		if i > 0 {
			msg.Blocks = append(msg.Blocks, messageBlock{Type: "divider"})
		}
		text := fmt.Sprintf("%s *[%s]* %s\n_%s_",
			severityEmoji(alert.Severity),
			strings.ToUpper(string(alert.Severity)),
			alert.Message,
			alert.TriggeredAt.Format("2006-01-02 15:04 UTC"),
		)
		msg.Blocks = append(msg.Blocks, messageBlock{
			Type: "section",
			Text: &messageText{Type: "mrkdwn", Text: text},
		})
	}
	return msg
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
