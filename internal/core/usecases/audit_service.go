package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/stashpoint/internal/core/availability"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
	"github.com/samirrijal/stashpoint/internal/pkg/metrics"
)

// AuditService finds stashpoints whose bookings exceed their capacity.
// It only reports; bookings are never touched.
type AuditService struct {
	stashpoints ports.StashpointRepository
	bookings    ports.BookingRepository
	events      ports.EventPublisher
	now         func() time.Time
}

// NewAuditService creates a new AuditService. events may be nil.
func NewAuditService(
	stashpoints ports.StashpointRepository,
	bookings ports.BookingRepository,
	events ports.EventPublisher,
) *AuditService {
	return &AuditService{
		stashpoints: stashpoints,
		bookings:    bookings,
		events:      events,
		now:         time.Now,
	}
}

// FindOverbooked returns every stashpoint whose concurrent bookings exceed
// its capacity at some instant of w, in listing order. Bookings that follow
// each other are not added up.
func (s *AuditService) FindOverbooked(ctx context.Context, w domain.Window) ([]domain.CapacityAnomaly, error) {
	if !w.Pickup.After(w.Dropoff) {
		return nil, fmt.Errorf("audit window must end after it starts")
	}

	all, err := s.stashpoints.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stashpoints: %w", err)
	}
	if len(all) == 0 {
		return []domain.CapacityAnomaly{}, nil
	}

	active, err := s.bookings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	byStashpoint := make(map[string][]domain.Booking)
	for _, b := range active {
		if availability.Overlaps(b, w) {
			byStashpoint[b.StashpointID] = append(byStashpoint[b.StashpointID], b)
		}
	}

	detected := s.now().UTC()
	anomalies := make([]domain.CapacityAnomaly, 0)
	for _, sp := range all {
		peak, peakAt := availability.PeakBags(byStashpoint[sp.ID], w)
		available := availability.Available(sp.Capacity, peak)
		if available >= 0 {
			continue
		}
		anomalies = append(anomalies, domain.CapacityAnomaly{
			StashpointID:      sp.ID,
			Name:              sp.Name,
			Capacity:          sp.Capacity,
			BookedBags:        peak,
			AvailableCapacity: available,
			WindowStart:       w.Dropoff,
			WindowEnd:         w.Pickup,
			PeakAt:            peakAt,
			DetectedAt:        detected,
		})
	}
	return anomalies, nil
}

// Report publishes each anomaly. Publishing is best-effort; the number of
// anomalies that reached the broker is returned.
func (s *AuditService) Report(ctx context.Context, anomalies []domain.CapacityAnomaly) int {
	log := logging.FromContext(ctx)
	sent := 0
	for i := range anomalies {
		a := &anomalies[i]
		metrics.CapacityAnomalies.WithLabelValues("audit").Inc()
		log.Warn("stashpoint overbooked",
			"stashpoint_id", a.StashpointID,
			"capacity", a.Capacity,
			"booked_bags", a.BookedBags,
			"peak_at", a.PeakAt,
			"window_start", a.WindowStart,
			"window_end", a.WindowEnd,
		)
		if s.events == nil {
			continue
		}
		if err := s.events.PublishCapacityAnomaly(ctx, a); err != nil {
			log.Warn("publish capacity anomaly failed", "stashpoint_id", a.StashpointID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
