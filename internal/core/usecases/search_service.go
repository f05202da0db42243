package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/stashpoint/internal/core/availability"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
	"github.com/samirrijal/stashpoint/internal/pkg/metrics"
	"github.com/samirrijal/stashpoint/internal/pkg/telemetry"
)

// Capacity evaluation modes.
const (
	CapacityModeBatch    = "batch"
	CapacityModeParallel = "parallel"
)

// SearchOptions tunes SearchService.
type SearchOptions struct {
	DefaultRadiusKm float64
	CapacityMode    string
	Parallelism     int
	// CandidateTTL is the candidate cache lifetime in seconds; 0 disables it.
	CandidateTTL int
}

// DefaultSearchOptions mirrors the configuration defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		DefaultRadiusKm: 10,
		CapacityMode:    CapacityModeBatch,
		Parallelism:     8,
		CandidateTTL:    60,
	}
}

// SearchService answers availability searches: which stashpoints near a
// point can hold N bags for a window.
type SearchService struct {
	stashpoints ports.StashpointRepository
	bookings    ports.BookingRepository
	snapshots   ports.SnapshotReader
	cache       ports.CacheService
	events      ports.EventPublisher
	opts        SearchOptions

	// generation is folded into candidate cache keys and bumped when the
	// stashpoint inventory changes.
	generation atomic.Int64
}

// NewSearchService creates a new SearchService. snapshots, cache and events
// may be nil.
func NewSearchService(
	stashpoints ports.StashpointRepository,
	bookings ports.BookingRepository,
	snapshots ports.SnapshotReader,
	cache ports.CacheService,
	events ports.EventPublisher,
	opts SearchOptions,
) *SearchService {
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = 10
	}
	if opts.CapacityMode == "" {
		opts.CapacityMode = CapacityModeBatch
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	return &SearchService{
		stashpoints: stashpoints,
		bookings:    bookings,
		snapshots:   snapshots,
		cache:       cache,
		events:      events,
		opts:        opts,
	}
}

// DefaultRadiusKm returns the radius applied when a query has none.
func (s *SearchService) DefaultRadiusKm() float64 {
	return s.opts.DefaultRadiusKm
}

// InvalidateCandidates retires every cached candidate list.
func (s *SearchService) InvalidateCandidates(version int64) {
	for {
		cur := s.generation.Load()
		if version <= cur {
			version = cur + 1
		}
		if s.generation.CompareAndSwap(cur, version) {
			return
		}
	}
}

// FindAvailable returns the stashpoints within the query radius that are open
// across the window and still have room for the requested bags, nearest
// first. The query is trusted: callers validate at their boundary. An empty,
// non-nil slice means nothing matched.
func (s *SearchService) FindAvailable(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	if q.RadiusKm <= 0 {
		q.RadiusKm = s.opts.DefaultRadiusKm
	}

	ctx, span := telemetry.Tracer("usecases.search").Start(ctx, "SearchService.FindAvailable")
	defer span.End()
	span.SetAttributes(
		telemetry.AttrSearchRadiusKm.Float64(q.RadiusKm),
		telemetry.AttrSearchBagCount.Int(q.BagCount),
		telemetry.AttrCapacityMode.String(s.opts.CapacityMode),
	)

	start := time.Now()
	var (
		candidates []domain.Candidate
		results    []domain.SearchResult
	)
	run := func(ctx context.Context) error {
		var err error
		candidates, err = s.candidates(ctx, q)
		if err != nil {
			return err
		}

		booked, err := s.bookedBags(ctx, candidates, q.Window())
		if err != nil {
			return err
		}

		s.reportAnomalies(ctx, candidates, booked, q.Window())
		results = availability.Compose(candidates, booked, q.BagCount)
		return nil
	}

	var err error
	if s.snapshots != nil {
		err = s.snapshots.ReadSnapshot(ctx, run)
	} else {
		err = run(ctx)
	}
	metrics.SearchDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
	metrics.SearchCandidates.Observe(float64(len(candidates)))
	metrics.SearchResults.Observe(float64(len(results)))
	span.SetAttributes(
		telemetry.AttrSearchCandidates.Int(len(candidates)),
		telemetry.AttrSearchResults.Int(len(results)),
	)

	s.publish(ctx, q, len(candidates), len(results))
	return results, nil
}

// cachedCandidate is the cached form of a candidate. Stashpoint fields are
// re-read on every hit so capacity and hours come from the current snapshot.
type cachedCandidate struct {
	ID         string  `json:"id"`
	DistanceKm float64 `json:"distance_km"`
}

// candidates runs the location stage, read through the cache. Only the
// matching ids and distances are cached: booked bags change far more often
// than stashpoints, and stashpoint details are re-read inside the snapshot.
func (s *SearchService) candidates(ctx context.Context, q domain.SearchQuery) ([]domain.Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("candidates").Observe(time.Since(start).Seconds())
	}()

	useCache := s.cache != nil && s.opts.CandidateTTL > 0
	cacheKey := s.candidateKey(q)
	if useCache {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached []cachedCandidate
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("candidates").Inc()
				trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrCacheHit.Bool(true))
				return s.refresh(ctx, cached, q.Window())
			}
		}
		metrics.CacheMisses.WithLabelValues("candidates").Inc()
		trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrCacheHit.Bool(false))
	}

	candidates, err := s.stashpoints.FindCandidates(ctx, q.Origin(), q.RadiusKm, q.Window())
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}

	if useCache {
		cached := make([]cachedCandidate, len(candidates))
		for i, c := range candidates {
			cached[i] = cachedCandidate{ID: c.Stashpoint.ID, DistanceKm: c.DistanceKm}
		}
		if data, err := json.Marshal(cached); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.opts.CandidateTTL)
		}
	}
	return candidates, nil
}

// refresh rebuilds cached candidates from the current stashpoints, keeping
// the cached order. Stashpoints that were removed or no longer open for the
// window are dropped.
func (s *SearchService) refresh(ctx context.Context, cached []cachedCandidate, w domain.Window) ([]domain.Candidate, error) {
	ids := make([]string, len(cached))
	for i, c := range cached {
		ids[i] = c.ID
	}
	current, err := s.stashpoints.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("refresh candidates: %w", err)
	}
	byID := make(map[string]domain.Stashpoint, len(current))
	for _, sp := range current {
		byID[sp.ID] = sp
	}

	candidates := make([]domain.Candidate, 0, len(cached))
	for _, c := range cached {
		sp, ok := byID[c.ID]
		if !ok || !availability.OpenDuring(sp, w) {
			continue
		}
		candidates = append(candidates, domain.Candidate{Stashpoint: sp, DistanceKm: c.DistanceKm})
	}
	return candidates, nil
}

// candidateKey identifies a location-stage query. Coordinates keep full
// precision since distances are computed from them.
func (s *SearchService) candidateKey(q domain.SearchQuery) string {
	return fmt.Sprintf("search:candidates:%d:%s:%s:%s:%d:%d",
		s.generation.Load(),
		strconv.FormatFloat(q.Lat, 'f', -1, 64),
		strconv.FormatFloat(q.Lng, 'f', -1, 64),
		strconv.FormatFloat(q.RadiusKm, 'f', -1, 64),
		int64(domain.TimeOfDayOf(q.Dropoff)),
		int64(domain.TimeOfDayOf(q.Pickup)),
	)
}

// bookedBags returns the committed bags per candidate, index-aligned with
// candidates.
func (s *SearchService) bookedBags(ctx context.Context, candidates []domain.Candidate, w domain.Window) ([]int, error) {
	booked := make([]int, len(candidates))
	if len(candidates) == 0 {
		return booked, nil
	}

	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("capacity").Observe(time.Since(start).Seconds())
	}()

	if s.opts.CapacityMode == CapacityModeParallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Parallelism)
		for i, c := range candidates {
			g.Go(func() error {
				n, err := s.bookings.BookedBags(gctx, c.Stashpoint.ID, w)
				if err != nil {
					return fmt.Errorf("booked bags for %s: %w", c.Stashpoint.ID, err)
				}
				booked[i] = n
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return booked, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Stashpoint.ID
	}
	byID, err := s.bookings.BookedBagsByLocation(ctx, ids, w)
	if err != nil {
		return nil, fmt.Errorf("booked bags: %w", err)
	}
	for i, id := range ids {
		booked[i] = byID[id]
	}
	return booked, nil
}

// reportAnomalies logs and counts over-booked candidates. Their negative
// availability is passed on unchanged.
func (s *SearchService) reportAnomalies(ctx context.Context, candidates []domain.Candidate, booked []int, w domain.Window) {
	log := logging.FromContext(ctx)
	for i, c := range candidates {
		available := availability.Available(c.Stashpoint.Capacity, booked[i])
		if available >= 0 {
			continue
		}
		metrics.CapacityAnomalies.WithLabelValues("search").Inc()
		log.Debug("stashpoint over capacity",
			"stashpoint_id", c.Stashpoint.ID,
			"capacity", c.Stashpoint.Capacity,
			"booked_bags", booked[i],
			"available_capacity", available,
			"dropoff", w.Dropoff,
			"pickup", w.Pickup,
		)
	}
}

// publish announces the search. Failures are logged and otherwise ignored.
func (s *SearchService) publish(ctx context.Context, q domain.SearchQuery, candidates, results int) {
	if s.events == nil {
		return
	}
	event := &domain.SearchEvent{
		Time:       time.Now().UTC(),
		Lat:        q.Lat,
		Lng:        q.Lng,
		RadiusKm:   q.RadiusKm,
		BagCount:   q.BagCount,
		Dropoff:    q.Dropoff,
		Pickup:     q.Pickup,
		Candidates: candidates,
		Results:    results,
	}
	if err := s.events.PublishSearchPerformed(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish search event failed", "error", err)
	}
}
