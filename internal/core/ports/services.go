package ports

import (
	"context"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSearchPerformed(ctx context.Context, event *domain.SearchEvent) error
	PublishInventoryChanged(ctx context.Context, change *domain.InventoryChange) error
	PublishCapacityAnomaly(ctx context.Context, anomaly *domain.CapacityAnomaly) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeInventoryChanges(ctx context.Context, handler func(ctx context.Context, change *domain.InventoryChange) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
