package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
)

var _ Notifier = &Slack{}

// Slack posts notifications to an incoming webhook.
type Slack struct {
	webhookURL string
	dryRun     bool
}

// NewSlack creates a Slack notifier. Without a webhook URL, or in dry-run
// mode, messages are logged instead of posted.
func NewSlack(cfg config.Notify) *Slack {
	return &Slack{webhookURL: cfg.SlackWebhookURL, dryRun: cfg.DryRun}
}

func (s *Slack) ResultRecorded(ctx context.Context, m league.Match) error {
	fallback := fmt.Sprintf("Week %d: %s", m.Week, ResultText(m))
	return s.sendMessage(ctx, fallback, FormatResult(m))
}

func (s *Slack) WeekScheduled(ctx context.Context, week int, matches []league.Match) error {
	fallback := fmt.Sprintf("Week %d schedule: %d matches", week, len(matches))
	return s.sendMessage(ctx, fallback, FormatWeek(week, matches))
}

func (s *Slack) sendMessage(ctx context.Context, text string, message slack.Message) error {
	if s.dryRun || s.webhookURL == "" {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "text", text, "message", string(jsonMsg))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{
		Text:   text,
		Blocks: &message.Blocks,
	})
	if err != nil {
		log.Error("Failed to send Slack message", "error", err)
		return fmt.Errorf("failed to post webhook: %w", err)
	}

	log.Info("Successfully sent Slack message", "text", text)
	return nil
}
