package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/yangwenmai/taskforge/internal/model"
)

// SlackAlerter posts pipeline outcomes to a Slack incoming webhook.
// With no webhook configured every call is a no-op.
type SlackAlerter struct {
	webhookURL string
}

// NewSlackAlerter creates an alerter; an empty URL disables it.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{webhookURL: strings.TrimSpace(webhookURL)}
}

// Enabled reports whether a webhook is configured.
func (a *SlackAlerter) Enabled() bool {
	return a.webhookURL != ""
}

// Completed announces a published round.
func (a *SlackAlerter) Completed(ctx context.Context, req model.TaskRequest, res model.PublicationResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":white_check_mark: *%s* round %d published\n", req.Task, req.Round)
	fmt.Fprintf(&sb, "*Repo:* %s\n", res.RepoURL)
	fmt.Fprintf(&sb, "*Pages:* %s\n", res.PagesURL)
	fmt.Fprintf(&sb, "*Commit:* `%s`", res.CommitSHA)
	return a.post(ctx, sb.String())
}

// Failed announces a failed round with the error detail in a code block.
func (a *SlackAlerter) Failed(ctx context.Context, req model.TaskRequest, step string, cause error) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":x: *%s* round %d failed", req.Task, req.Round)
	if step != "" {
		fmt.Fprintf(&sb, " at `%s`", step)
	}
	fmt.Fprintf(&sb, "\n*Nonce:* `%s`\n```\n%v\n```", req.Nonce, cause)
	return a.post(ctx, sb.String())
}

func (a *SlackAlerter) post(ctx context.Context, text string) error {
	if !a.Enabled() {
		slog.Debug("slack webhook not configured, skipping alert")
		return nil
	}
	if err := slack.PostWebhookContext(ctx, a.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("slack alert: %w", err)
	}
	return nil
}
