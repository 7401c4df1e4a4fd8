package escalation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackWebhookNotifier posts to a Slack incoming webhook.
type SlackWebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewSlackWebhookNotifier creates a notifier for an incoming webhook URL.
func NewSlackWebhookNotifier(url string, logger zerolog.Logger) *SlackWebhookNotifier {
	return &SlackWebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With().Str("component", "slack_notifier").Logger(),
	}
}

func (s *SlackWebhookNotifier) Notify(ctx context.Context, n Notice) error {
	msg := &slack.WebhookMessage{
		Text:        fmt.Sprintf("%s %s", levelEmoji(n.Level), n.Title),
		Attachments: []slack.Attachment{attachment(n)},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	s.logger.Info().Str("escalation_id", n.ID).Msg("escalation sent")
	return nil
}

func attachment(n Notice) slack.Attachment {
	a := slack.Attachment{
		Color:    levelColor(n.Level),
		Title:    n.Title,
		Text:     n.Message,
		Footer:   "mission-control",
		Fallback: n.Message,
	}
	if n.Source != "" {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: "Bot", Value: n.Source, Short: true})
	}
	if n.TaskID != "" {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: "Task", Value: n.TaskID, Short: true})
	}
	if len(n.Options) > 0 {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: "Options", Value: strings.Join(n.Options, "\n")})
	}
	if n.Recommendation != "" {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: "Recommendation", Value: n.Recommendation})
	}
	return a
}

func levelColor(l Level) string {
	switch l {
	case LevelCritical:
		return "danger"
	case LevelWarning:
		return "warning"
	default:
		return "good"
	}
}

// SlackAPI abstracts Slack posting for testing.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts to a channel with a bot token.
type SlackNotifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier posting to channel. api is usually slack.New(token).
func NewSlackNotifier(api SlackAPI, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "slack_notifier").Logger(),
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, n Notice) error {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, n.Text(), false, false), nil, nil),
	}
	if n.ID != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, "Escalation `"+n.ID+"`", false, false)))
	}

	_, ts, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(n.Title+": "+n.Message, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	s.logger.Info().Str("escalation_id", n.ID).Str("ts", ts).Msg("escalation sent")
	return nil
}
