package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"response_analytics/config"
	"response_analytics/report"
)

// Message represents an outbound run summary.
type Message struct {
	Text string
}

// SummaryMessage formats the key metrics of rep for chat.
func SummaryMessage(runID string, rep *report.Report) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "*Response time report* (run %s)\n", runID)
	fmt.Fprintf(&b, "Closest valid responses: %d\n", len(rep.Records))
	b.WriteString("```\n")
	for _, scope := range rep.Scopes() {
		b.WriteString(scope.Label + "\n")
		for _, line := range report.SummaryLines(scope.Summary) {
			b.WriteString("  " + line + "\n")
		}
	}
	for _, line := range report.FrequencyLines(rep.Frequency) {
		b.WriteString(line + "\n")
	}
	b.WriteString("```")
	return Message{Text: b.String()}
}

// SendSlack posts msg to the configured incoming webhook. It is a no-op when
// no webhook is configured.
func SendSlack(ctx context.Context, cfg config.Config, msg Message) error {
	if cfg.SlackWebhookURL == "" {
		return nil
	}
	if err := slack.PostWebhookContext(ctx, cfg.SlackWebhookURL, &slack.WebhookMessage{Text: msg.Text}); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
