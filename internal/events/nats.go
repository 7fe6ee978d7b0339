package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSDispatcher delivers events to local subscribers and mirrors them to a
// JetStream stream for other consumers.
type NATSDispatcher struct {
	local  Dispatcher
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *zap.Logger
}

// NewNATSDispatcher connects to url and ensures stream captures prefix.>.
func NewNATSDispatcher(url, stream, prefix string, local Dispatcher, logger *zap.Logger) (*NATSDispatcher, error) {
	nc, err := nats.Connect(url, nats.Name("realty-service"))
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, err
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{prefix + ".>"},
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %s: %w", stream, err)
		}
	}

	return &NATSDispatcher{local: local, conn: nc, js: js, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event type is published on.
func (d *NATSDispatcher) Subject(eventType EventType) string {
	return d.prefix + "." + string(eventType)
}

// Publish runs local handlers, then publishes to JetStream. A failed
// publish is logged; local delivery has already happened.
func (d *NATSDispatcher) Publish(ctx context.Context, event Event) error {
	if err := d.local.Publish(ctx, event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := d.js.Publish(d.Subject(event.Type), data, nats.Context(ctx), nats.MsgId(event.ID)); err != nil {
		d.logger.Warn("publish event to nats failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	return nil
}

// Subscribe registers a local handler.
func (d *NATSDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.local.Subscribe(eventType, handler)
}

// Close drains the connection.
func (d *NATSDispatcher) Close() {
	if d == nil {
		return
	}
	if err := d.conn.Drain(); err != nil {
		d.conn.Close()
	}
}
