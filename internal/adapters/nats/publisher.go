package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// Subjects
const (
	SubjectSearchPerformed  = "stashpoint.search.performed"
	SubjectInventoryChanged = "stashpoint.inventory.changed"
	SubjectCapacityAnomaly  = "stashpoint.capacity.anomaly"
)

// Streams lists the JetStream streams the service publishes to.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "STASHPOINT_SEARCHES",
			Subjects:  []string{SubjectSearchPerformed},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "STASHPOINT_INVENTORY",
			Subjects:  []string{SubjectInventoryChanged},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "STASHPOINT_ANOMALIES",
			Subjects:  []string{SubjectCapacityAnomaly + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	for _, cfg := range Streams() {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishSearchPerformed(ctx context.Context, event *domain.SearchEvent) error {
	return p.publish(ctx, SubjectSearchPerformed, event)
}

func (p *Publisher) PublishInventoryChanged(ctx context.Context, change *domain.InventoryChange) error {
	return p.publish(ctx, SubjectInventoryChanged, change)
}

func (p *Publisher) PublishCapacityAnomaly(ctx context.Context, anomaly *domain.CapacityAnomaly) error {
	return p.publish(ctx, SubjectCapacityAnomaly+"."+anomaly.StashpointID, anomaly)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Connected reports whether the connection is up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// connect creates a plain NATS connection with the service's reconnect policy.
func connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
