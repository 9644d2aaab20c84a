package healthmonitor

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Escalator notifies an operator that a task has been escalated or
// aborted and needs attention.
type Escalator interface {
	Notify(ctx context.Context, task *core.Task, message string) error
}

// SlackEscalator posts an escalation notice to an incoming webhook.
type SlackEscalator struct {
	WebhookURL string
}

func (s SlackEscalator) Notify(ctx context.Context, task *core.Task, message string) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: task *%s* (%s) needs attention: %s", task.Name, task.ID, message),
	}
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return core.ErrExecution("ESCALATION_NOTIFY_FAILED", fmt.Sprintf("slack webhook: %v", err)).WithCause(err)
	}
	return nil
}
