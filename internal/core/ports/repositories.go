package ports

import (
	"context"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// StashpointRepository persists stashpoints and answers the location half of
// an availability search.
type StashpointRepository interface {
	Upsert(ctx context.Context, sp *domain.Stashpoint) error
	GetByID(ctx context.Context, id string) (*domain.Stashpoint, error)
	// GetByIDs returns the stashpoints that exist among ids, in no
	// particular order.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Stashpoint, error)
	List(ctx context.Context) ([]domain.Stashpoint, error)

	// FindCandidates returns the stashpoints within radiusKm of origin that
	// are open across the window, nearest first.
	FindCandidates(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error)
}

// BookingRepository persists bookings and answers the capacity half of an
// availability search. Only non-cancelled bookings whose interval overlaps
// the window (touching endpoints excluded) are counted.
type BookingRepository interface {
	Insert(ctx context.Context, b *domain.Booking) error
	ListActive(ctx context.Context) ([]domain.Booking, error)

	// BookedBags sums bag counts for one stashpoint.
	BookedBags(ctx context.Context, stashpointID string, w domain.Window) (int, error)
	// BookedBagsByLocation sums bag counts for many stashpoints in one pass.
	// Stashpoints without overlapping bookings may be absent from the map.
	BookedBagsByLocation(ctx context.Context, stashpointIDs []string, w domain.Window) (map[string]int, error)
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	Upsert(ctx context.Context, c *domain.Customer) error
}

// SnapshotReader runs fn against a consistent view of stashpoints and
// bookings, so that a search never sees half of a concurrent write.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}
