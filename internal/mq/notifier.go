package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/types"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const typeAttribute = "type"

// Notifier publishes notifications as JSON to one channel. The mailer
// consumes that channel.
type Notifier struct {
	backend Backend
	channel string
}

func NewNotifier(backend Backend, channel string) *Notifier {
	return &Notifier{backend: backend, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, notification types.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	id, err := n.backend.Publish(ctx, n.channel, data, map[string]string{typeAttribute: notification.Type})
	if err != nil {
		metrics.NotificationsPublished.WithLabelValues(notification.Type, "error").Inc()
		return fmt.Errorf("publish notification: %w", err)
	}
	metrics.NotificationsPublished.WithLabelValues(notification.Type, "ok").Inc()
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"notification": notification.Type,
		"messageID":    id,
	}).Debug("notification published")
	return nil
}

// DecodeNotification parses a message produced by Notifier.
func DecodeNotification(msg Message) (types.Notification, error) {
	var notification types.Notification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		return types.Notification{}, fmt.Errorf("decode notification %s: %w", msg.ID, err)
	}
	return notification, nil
}

// LogNotifier only logs notifications. Used when no broker is configured.
// With ShowSecrets set, reset codes are logged so a developer can finish a
// password reset without a mail server.
type LogNotifier struct {
	ShowSecrets bool
}

func (l LogNotifier) Notify(ctx context.Context, notification types.Notification) error {
	entry := logger.FromContext(ctx).WithFields(logrus.Fields{
		"notification": notification.Type,
		"to":           notification.To,
	})
	if code, ok := notification.Data["otp"]; ok && l.ShowSecrets {
		entry = entry.WithField("otp", code)
	}
	entry.Info("notification not delivered: no message queue configured")
	metrics.NotificationsPublished.WithLabelValues(notification.Type, "skipped").Inc()
	return nil
}
