package job

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/events"
	"presence-service/internal/metrics"
)

// Job is a unit of background work that can run on a schedule or on demand.
type Job interface {
	Name() string
	Run(ctx context.Context) (*Result, error)
}

// Result is what a job reports back to the scheduler and the HTTP trigger.
type Result struct {
	Processed            int                  `json:"processed"`
	NotificationsCreated int                  `json:"notificationsCreated"`
	Failed               int                  `json:"failed,omitempty"`
	Summary              *domain.DecaySummary `json:"summary,omitempty"`
}

// Notifier is told about every notification a job has committed.
type Notifier interface {
	NotificationCreated(ctx context.Context, n *domain.Notification)
}

type unreadInvalidator interface {
	InvalidateUnreadCount(ctx context.Context, userID uuid.UUID)
}

type eventNotifier struct {
	publisher events.Publisher
	inbox     unreadInvalidator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewNotifier publishes created notifications and drops the owner's cached unread count.
// Both steps are best-effort. inbox may be nil.
func NewNotifier(publisher events.Publisher, inbox unreadInvalidator, m *metrics.Metrics, logger *zap.Logger) Notifier {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &eventNotifier{
		publisher: publisher,
		inbox:     inbox,
		metrics:   m,
		logger:    logger,
	}
}

func (n *eventNotifier) NotificationCreated(ctx context.Context, notification *domain.Notification) {
	n.metrics.IncrementNotificationsCreated(string(notification.Category))

	if n.inbox != nil {
		n.inbox.InvalidateUnreadCount(ctx, notification.UserID)
	}

	if err := n.publisher.Publish(ctx, events.TopicNotifications, notification.UserID, notification); err != nil {
		n.metrics.IncrementEventPublishFailures(events.TopicNotifications)
		n.logger.Warn("Failed to publish notification event",
			zap.String("notification_id", notification.ID.String()),
			zap.Error(err),
		)
	}
}
