// Package memory serves availability searches from an in-process snapshot of
// stashpoints and bookings, indexed with an R-tree.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/stashpoint/internal/core/availability"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/pkg/geospatial"
	"github.com/samirrijal/stashpoint/internal/pkg/metrics"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance is the half-width of the degenerate rect each
	// stashpoint occupies in the tree.
	pointTolerance = 1e-9
)

// item places a stashpoint in the tree. seq is its position in the listing
// order and breaks distance ties deterministically.
type item struct {
	id   string
	seq  int
	rect *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect {
	return it.rect
}

// snapshot is immutable once published.
type snapshot struct {
	tree        *rtreego.Rtree
	order       []string
	stashpoints map[string]domain.Stashpoint
	bookings    map[string][]domain.Booking
	customers   map[string]domain.Customer
	loadedAt    time.Time
}

func newSnapshot(stashpoints []domain.Stashpoint, bookings []domain.Booking, customers map[string]domain.Customer) *snapshot {
	s := &snapshot{
		order:       make([]string, 0, len(stashpoints)),
		stashpoints: make(map[string]domain.Stashpoint, len(stashpoints)),
		bookings:    make(map[string][]domain.Booking),
		customers:   customers,
		loadedAt:    time.Now(),
	}
	if s.customers == nil {
		s.customers = make(map[string]domain.Customer)
	}

	for _, sp := range stashpoints {
		if _, dup := s.stashpoints[sp.ID]; !dup {
			s.order = append(s.order, sp.ID)
		}
		s.stashpoints[sp.ID] = sp
	}
	for _, b := range bookings {
		s.bookings[b.StashpointID] = append(s.bookings[b.StashpointID], b)
	}
	s.index()
	return s
}

func (s *snapshot) index() {
	items := make([]rtreego.Spatial, 0, len(s.order))
	for i, id := range s.order {
		sp := s.stashpoints[id]
		items = append(items, &item{
			id:   id,
			seq:  i,
			rect: rtreego.Point{sp.Latitude, sp.Longitude}.ToRect(pointTolerance),
		})
	}
	s.tree = rtreego.NewTree(dimensions, minChildren, maxChildren, items...)
}

// clone copies the maps so the receiver stays untouched.
func (s *snapshot) clone() *snapshot {
	return &snapshot{
		tree:        s.tree,
		order:       slices.Clone(s.order),
		stashpoints: maps.Clone(s.stashpoints),
		bookings:    maps.Clone(s.bookings),
		customers:   maps.Clone(s.customers),
		loadedAt:    time.Now(),
	}
}

type snapshotKey struct{}

// Store is an in-memory stashpoint and booking store. Readers work on an
// immutable snapshot; writers publish a new one.
type Store struct {
	mu   sync.RWMutex
	snap *snapshot
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{snap: newSnapshot(nil, nil, nil)}
}

// current returns the snapshot pinned in ctx or the latest one.
func (s *Store) current(ctx context.Context) *snapshot {
	if snap, ok := ctx.Value(snapshotKey{}).(*snapshot); ok {
		return snap
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) publish(snap *snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	metrics.SnapshotStashpoints.Set(float64(len(snap.order)))
}

// update applies fn to a copy of the latest snapshot and publishes it.
func (s *Store) update(fn func(next *snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.snap = next
	metrics.SnapshotStashpoints.Set(float64(len(next.order)))
	return nil
}

// ReadSnapshot pins the current snapshot for every store call fn makes, so
// a concurrent Replace cannot split a search across two data sets.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(snapshotKey{}).(*snapshot); ok {
		return fn(ctx)
	}
	return fn(context.WithValue(ctx, snapshotKey{}, s.current(ctx)))
}

// Replace swaps in a snapshot built from the given records.
func (s *Store) Replace(stashpoints []domain.Stashpoint, bookings []domain.Booking) {
	s.mu.RLock()
	customers := s.snap.customers
	s.mu.RUnlock()
	s.publish(newSnapshot(stashpoints, bookings, customers))
}

// Reload loads every stashpoint and active booking from the given
// repositories and replaces the snapshot.
func (s *Store) Reload(ctx context.Context, stashpoints ports.StashpointRepository, bookings ports.BookingRepository) error {
	var (
		sps []domain.Stashpoint
		bks []domain.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sps, err = stashpoints.List(gctx)
		if err != nil {
			return fmt.Errorf("list stashpoints: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bks, err = bookings.ListActive(gctx)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.SnapshotReloads.WithLabelValues("error").Inc()
		return err
	}

	s.Replace(sps, bks)
	metrics.SnapshotReloads.WithLabelValues("ok").Inc()
	return nil
}

// LoadedAt reports when the current snapshot was published.
func (s *Store) LoadedAt() time.Time {
	return s.current(context.Background()).loadedAt
}

// Upsert implements ports.StashpointRepository.
func (s *Store) Upsert(ctx context.Context, sp *domain.Stashpoint) error {
	return s.update(func(next *snapshot) error {
		if _, ok := next.stashpoints[sp.ID]; !ok {
			next.order = append(next.order, sp.ID)
		}
		next.stashpoints[sp.ID] = *sp
		next.index()
		return nil
	})
}

// GetByID implements ports.StashpointRepository.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Stashpoint, error) {
	sp, ok := s.current(ctx).stashpoints[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sp, nil
}

// GetByIDs implements ports.StashpointRepository.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Stashpoint, error) {
	snap := s.current(ctx)
	out := make([]domain.Stashpoint, 0, len(ids))
	for _, id := range ids {
		if sp, ok := snap.stashpoints[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

// List implements ports.StashpointRepository.
func (s *Store) List(ctx context.Context) ([]domain.Stashpoint, error) {
	snap := s.current(ctx)
	out := make([]domain.Stashpoint, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, snap.stashpoints[id])
	}
	return out, nil
}

// FindCandidates implements ports.StashpointRepository. The tree narrows the
// search to a bounding box; the exact radius and hours checks follow.
func (s *Store) FindCandidates(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.current(ctx)

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(origin.Lat, origin.Lon, radiusKm)
	rect, err := rtreego.NewRect(
		rtreego.Point{minLat, minLon},
		[]float64{
			math.Max(maxLat-minLat, pointTolerance),
			math.Max(maxLon-minLon, pointTolerance),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("search box: %w", err)
	}

	hits := snap.tree.SearchIntersect(rect)
	slices.SortFunc(hits, func(a, b rtreego.Spatial) int {
		return cmp.Compare(a.(*item).seq, b.(*item).seq)
	})

	nearby := make([]domain.Stashpoint, 0, len(hits))
	for _, h := range hits {
		nearby = append(nearby, snap.stashpoints[h.(*item).id])
	}
	return availability.FilterCandidates(nearby, origin, radiusKm, w), nil
}

// Insert implements ports.BookingRepository.
func (s *Store) Insert(ctx context.Context, b *domain.Booking) error {
	return s.update(func(next *snapshot) error {
		// A re-inserted booking may have moved to another stashpoint.
		for id, existing := range next.bookings {
			if i := slices.IndexFunc(existing, func(old domain.Booking) bool { return old.ID == b.ID }); i >= 0 {
				next.bookings[id] = slices.Delete(slices.Clone(existing), i, i+1)
			}
		}
		next.bookings[b.StashpointID] = append(slices.Clone(next.bookings[b.StashpointID]), *b)
		return nil
	})
}

// ListActive implements ports.BookingRepository.
func (s *Store) ListActive(ctx context.Context) ([]domain.Booking, error) {
	snap := s.current(ctx)
	var out []domain.Booking
	for _, id := range snap.order {
		for _, b := range snap.bookings[id] {
			if !b.IsCancelled {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// BookedBags implements ports.BookingRepository.
func (s *Store) BookedBags(ctx context.Context, stashpointID string, w domain.Window) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return availability.BookedBags(s.current(ctx).bookings[stashpointID], stashpointID, w), nil
}

// BookedBagsByLocation implements ports.BookingRepository.
func (s *Store) BookedBagsByLocation(ctx context.Context, stashpointIDs []string, w domain.Window) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.current(ctx)
	out := make(map[string]int, len(stashpointIDs))
	for _, id := range stashpointIDs {
		if n := availability.BookedBags(snap.bookings[id], id, w); n != 0 {
			out[id] = n
		}
	}
	return out, nil
}

// UpsertCustomer stores a customer.
func (s *Store) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	return s.update(func(next *snapshot) error {
		for id, other := range next.customers {
			if id != c.ID && other.Email == c.Email {
				return fmt.Errorf("customer email %q already taken", c.Email)
			}
		}
		next.customers[c.ID] = *c
		return nil
	})
}

// Customers adapts the store to ports.CustomerRepository.
func (s *Store) Customers() ports.CustomerRepository {
	return customerRepo{s}
}

type customerRepo struct{ s *Store }

func (r customerRepo) Upsert(ctx context.Context, c *domain.Customer) error {
	return r.s.UpsertCustomer(ctx, c)
}
