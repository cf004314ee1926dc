// Package notify delivers user-facing notifications and best-effort session
// messages. Nothing in this package is allowed to fail a board operation:
// delivery errors are logged and counted, never propagated.
package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/acastellana/clawcondos/internal/board"
	"github.com/acastellana/clawcondos/internal/metrics"
)

// maxNotifications bounds the persisted notification list. Oldest records are
// dropped first.
const maxNotifications = 200

// SlackPoster is the subset of the Slack client used for announcements.
type SlackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier records notifications on the board and optionally announces them
// to a Slack channel.
type Notifier struct {
	slack   SlackPoster
	channel string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Notifier. A nil poster or empty channel disables Slack
// announcements; board persistence always happens.
func New(poster SlackPoster, channel string, m *metrics.Metrics, logger zerolog.Logger) *Notifier {
	return &Notifier{
		slack:   poster,
		channel: channel,
		metrics: m,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// NewSlackClient builds the real Slack client from a bot token.
func NewSlackClient(token string) SlackPoster {
	return slack.New(token)
}

// Notify appends the notification to the board, trimming to the retention
// cap, and announces it to Slack when configured. Must be called while the
// caller holds the board inside a store update.
func (n *Notifier) Notify(b *board.Board, rec board.Notification) {
	if rec.ID == "" {
		rec.ID = "ntf-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	}
	if rec.CreatedAtMs == 0 {
		rec.CreatedAtMs = time.Now().UnixMilli()
	}

	b.Notifications = append(b.Notifications, rec)
	if len(b.Notifications) > maxNotifications {
		b.Notifications = b.Notifications[len(b.Notifications)-maxNotifications:]
	}

	n.logger.Info().
		Str("type", rec.Type).
		Str("goal_id", rec.GoalID).
		Str("task_id", rec.TaskID).
		Msg(rec.Title)

	if n.slack == nil || n.channel == "" {
		return
	}
	// Slack announce runs outside the store critical section and never blocks
	// or fails the operation that produced the notification.
	go n.announce(rec)
}

func (n *Notifier) announce(rec board.Notification) {
	text := rec.Title
	if rec.Detail != "" {
		text += "\n" + rec.Detail
	}
	_, _, err := n.slack.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Warn().Err(err).Str("channel", n.channel).Msg("slack announce failed")
		if n.metrics != nil {
			n.metrics.RecordDeliveryFailure("slack")
		}
	}
}
