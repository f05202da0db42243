package availability

import (
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/pkg/geospatial"
)

// Compose turns candidates into results. booked[i] holds the bags committed
// at candidates[i]. Candidates that cannot take bagCount more bags are
// dropped; the order of the survivors is left untouched.
func Compose(candidates []domain.Candidate, booked []int, bagCount int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(candidates))
	for i, c := range candidates {
		available := Available(c.Stashpoint.Capacity, booked[i])
		if available < bagCount {
			continue
		}
		results = append(results, NewSearchResult(c, available))
	}
	return results
}

// NewSearchResult projects a candidate into its public shape.
func NewSearchResult(c domain.Candidate, available int) domain.SearchResult {
	sp := c.Stashpoint
	return domain.SearchResult{
		ID:                sp.ID,
		Name:              sp.Name,
		Address:           sp.Address,
		Latitude:          sp.Latitude,
		Longitude:         sp.Longitude,
		DistanceKm:        geospatial.RoundKm(c.DistanceKm),
		Capacity:          sp.Capacity,
		AvailableCapacity: available,
		OpenFrom:          sp.OpenFrom,
		OpenUntil:         sp.OpenUntil,
	}
}
