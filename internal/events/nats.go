package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes events to JetStream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("presence-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSPublisher{conn: nc, js: js, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, userID uuid.UUID, v any) error {
	if p == nil {
		return errors.New("nil publisher")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(Subject(p.prefix, topic, userID), data, nats.Context(ctx))
	return err
}

// Close drains pending publishes before closing the connection.
func (p *NATSPublisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
