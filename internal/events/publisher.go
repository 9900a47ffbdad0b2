package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presence-service/internal/config"
)

const (
	TopicPresence      = "presence"
	TopicNotifications = "notifications"
)

// Publisher delivers domain events to subscribers outside the service.
// Publishing is best-effort: callers log and count errors but never fail on them.
type Publisher interface {
	Publish(ctx context.Context, topic string, userID uuid.UUID, v any) error
	Close()
}

// Subject builds "<prefix>.<topic>.<user>", or "<topic>.<user>" without a prefix.
func Subject(prefix, topic string, userID uuid.UUID) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return fmt.Sprintf("%s.%s", topic, userID)
	}
	return fmt.Sprintf("%s.%s.%s", prefix, topic, userID)
}

// New selects the publisher configured in cfg.Driver. rdb is only used by the redis driver.
func New(cfg config.EventsConfig, rdb *redis.Client, logger *zap.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none", "noop":
		return Noop{}, nil
	case "redis":
		if rdb == nil {
			logger.Warn("Redis event driver selected without a redis client, events disabled")
			return Noop{}, nil
		}
		return NewRedisPublisher(rdb, cfg.SubjectPrefix), nil
	case "nats":
		return NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, uuid.UUID, any) error { return nil }

func (Noop) Close() {}
