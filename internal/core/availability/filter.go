package availability

import (
	"cmp"
	"slices"

	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/pkg/geospatial"
)

// OpenDuring reports whether the stashpoint is open at the dropoff clock time
// and still open at the pickup clock time. Both bounds are inclusive and the
// calendar date is ignored, so multi-day windows are judged by their two
// clock times only.
func OpenDuring(sp domain.Stashpoint, w domain.Window) bool {
	return sp.OpenFrom <= domain.TimeOfDayOf(w.Dropoff) &&
		sp.OpenUntil >= domain.TimeOfDayOf(w.Pickup)
}

// FilterCandidates keeps the stashpoints within radiusKm of origin that are
// open for the window, sorted by ascending distance. Equal distances keep
// their input order.
func FilterCandidates(stashpoints []domain.Stashpoint, origin domain.GeoPoint, radiusKm float64, w domain.Window) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(stashpoints))
	for _, sp := range stashpoints {
		if !OpenDuring(sp, w) {
			continue
		}
		p := sp.Point()
		dist := geospatial.DistanceKm(origin.Lat, origin.Lon, p.Lat, p.Lon)
		if dist > radiusKm {
			continue
		}
		candidates = append(candidates, domain.Candidate{Stashpoint: sp, DistanceKm: dist})
	}

	slices.SortStableFunc(candidates, func(a, b domain.Candidate) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return candidates
}
