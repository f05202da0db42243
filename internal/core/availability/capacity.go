package availability

import (
	"cmp"
	"slices"
	"time"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// Overlaps reports whether b commits bags during w. Cancelled bookings never
// count, and intervals that only touch at an endpoint do not overlap, so a
// pickup at 10:00 frees the slot for a dropoff at 10:00.
func Overlaps(b domain.Booking, w domain.Window) bool {
	return !b.IsCancelled &&
		b.DropoffTime.Before(w.Pickup) &&
		b.PickupTime.After(w.Dropoff)
}

// BookedBags sums the bag counts of the bookings at stashpointID that
// overlap w. Bookings for other stashpoints are ignored.
func BookedBags(bookings []domain.Booking, stashpointID string, w domain.Window) int {
	total := 0
	for _, b := range bookings {
		if b.StashpointID == stashpointID && Overlaps(b, w) {
			total += b.BagCount
		}
	}
	return total
}

// Available returns the remaining capacity. It is not clamped: over-booked
// data yields a negative number that callers must report, not hide.
func Available(capacity, booked int) int {
	return capacity - booked
}

// PeakBags returns the largest number of bags held at once during w by the
// given bookings, and the instant that peak starts. Bookings are clipped to
// w and are half-open, so one ending when another starts never stacks.
func PeakBags(bookings []domain.Booking, w domain.Window) (int, time.Time) {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(bookings))
	for _, b := range bookings {
		if !Overlaps(b, w) {
			continue
		}
		from, to := b.DropoffTime, b.PickupTime
		if from.Before(w.Dropoff) {
			from = w.Dropoff
		}
		if to.After(w.Pickup) {
			to = w.Pickup
		}
		edges = append(edges, edge{from, b.BagCount}, edge{to, -b.BagCount})
	}

	// Releases sort before arrivals at the same instant.
	slices.SortFunc(edges, func(a, b edge) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.delta, b.delta)
	})

	var (
		held, peak int
		peakAt     time.Time
	)
	for _, e := range edges {
		held += e.delta
		if held > peak {
			peak, peakAt = held, e.at
		}
	}
	return peak, peakAt
}
