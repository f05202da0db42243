package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// --- Mock StashpointRepository ---

type mockStashpointRepo struct {
	upsertFn         func(ctx context.Context, sp *domain.Stashpoint) error
	getByIDFn        func(ctx context.Context, id string) (*domain.Stashpoint, error)
	getByIDsFn       func(ctx context.Context, ids []string) ([]domain.Stashpoint, error)
	listFn           func(ctx context.Context) ([]domain.Stashpoint, error)
	findCandidatesFn func(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error)
}

func (m *mockStashpointRepo) Upsert(ctx context.Context, sp *domain.Stashpoint) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, sp)
	}
	return nil
}

func (m *mockStashpointRepo) GetByID(ctx context.Context, id string) (*domain.Stashpoint, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockStashpointRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Stashpoint, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockStashpointRepo) List(ctx context.Context) ([]domain.Stashpoint, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStashpointRepo) FindCandidates(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error) {
	if m.findCandidatesFn != nil {
		return m.findCandidatesFn(ctx, origin, radiusKm, w)
	}
	return nil, nil
}

// --- Mock BookingRepository ---

type mockBookingRepo struct {
	insertFn     func(ctx context.Context, b *domain.Booking) error
	listActiveFn func(ctx context.Context) ([]domain.Booking, error)
	bookedBagsFn func(ctx context.Context, id string, w domain.Window) (int, error)
	byLocationFn func(ctx context.Context, ids []string, w domain.Window) (map[string]int, error)
}

func (m *mockBookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, b)
	}
	return nil
}

func (m *mockBookingRepo) ListActive(ctx context.Context) ([]domain.Booking, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockBookingRepo) BookedBags(ctx context.Context, id string, w domain.Window) (int, error) {
	if m.bookedBagsFn != nil {
		return m.bookedBagsFn(ctx, id, w)
	}
	return 0, nil
}

func (m *mockBookingRepo) BookedBagsByLocation(ctx context.Context, ids []string, w domain.Window) (map[string]int, error) {
	if m.byLocationFn != nil {
		return m.byLocationFn(ctx, ids, w)
	}
	return map[string]int{}, nil
}

// --- Mock CustomerRepository ---

type mockCustomerRepo struct {
	mu        sync.Mutex
	customers []domain.Customer
}

func (m *mockCustomerRepo) Upsert(ctx context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append(m.customers, *c)
	return nil
}

// --- Mock SnapshotReader ---

type mockSnapshots struct {
	calls int
}

func (m *mockSnapshots) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	searches  []domain.SearchEvent
	changes   []domain.InventoryChange
	anomalies []domain.CapacityAnomaly
	err       error
}

func (m *mockPublisher) PublishSearchPerformed(ctx context.Context, event *domain.SearchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, *event)
	return m.err
}

func (m *mockPublisher) PublishInventoryChanged(ctx context.Context, change *domain.InventoryChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, *change)
	return m.err
}

func (m *mockPublisher) PublishCapacityAnomaly(ctx context.Context, anomaly *domain.CapacityAnomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, *anomaly)
	return m.err
}
