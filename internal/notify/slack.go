// Package notify posts security alerts to a Slack channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Notifier posts quarantine and high-score canary alerts. Nil-safe and
// fire-and-forget: notification failures never affect decisions.
type Notifier struct {
	client  *slack.Client
	channel string
}

// NewNotifier builds a notifier from a bot token and target channel.
func NewNotifier(token, channel string) *Notifier {
	return &Notifier{client: slack.New(token), channel: channel}
}

// QuarantineAlert reports a newly quarantined message.
func (n *Notifier) QuarantineAlert(ctx context.Context, identifier, platform, preview string) {
	n.post(ctx, fmt.Sprintf(":mailbox_with_no_mail: quarantined message from %s (%s): %s", identifier, platform, preview))
}

// CanaryAlert reports a high-score injection telemetry hit.
func (n *Notifier) CanaryAlert(ctx context.Context, identifier, platform string, score float64, patterns []string) {
	n.post(ctx, fmt.Sprintf(":rotating_light: injection markers from %s (%s) score=%.2f patterns=%v", identifier, platform, score, patterns))
}

func (n *Notifier) post(ctx context.Context, text string) {
	if n == nil {
		return
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Warn("slack alert failed", "channel", n.channel, "error", err)
	}
}
