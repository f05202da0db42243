package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeInventoryChanges delivers every new inventory change to this
// process. The consumer is ephemeral so that each instance sees each change.
func (s *Subscriber) SubscribeInventoryChanges(ctx context.Context, handler func(ctx context.Context, change *domain.InventoryChange) error) error {
	sub, err := s.js.Subscribe(SubjectInventoryChanged, func(msg *nats.Msg) {
		var change domain.InventoryChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			// Redelivery cannot fix a malformed payload.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &change); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
