package geospatial

import "math"

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = earthRadiusKm * math.Pi / 180

	// boxMargin keeps points lying exactly on the radius inside the box
	// despite floating point error.
	boxMargin = 1.01
)

// DistanceKm calculates the great-circle distance in kilometers between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// BoundingBox returns a box that contains every point within radiusKm of
// (lat, lon). It is only a prefilter; callers must still check DistanceKm.
// Near the poles the longitude span is widened to the whole globe.
func BoundingBox(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := boxMargin * radiusKm / kmPerDegree
	minLat = math.Max(lat-latDelta, -90)
	maxLat = math.Min(lat+latDelta, 90)
	minLon, maxLon = -180, 180

	// Widest longitude offset of a spherical cap; caps reaching a pole or
	// crossing the antimeridian fall back to the full longitude span.
	x := math.Sin(radiusKm/earthRadiusKm) / math.Cos(toRad(lat))
	if x >= 1 || minLat == -90 || maxLat == 90 {
		return minLat, minLon, maxLat, maxLon
	}
	lonDelta := boxMargin * math.Asin(x) * 180 / math.Pi
	if lon-lonDelta < -180 || lon+lonDelta > 180 {
		return minLat, minLon, maxLat, maxLon
	}
	return minLat, lon - lonDelta, maxLat, lon + lonDelta
}

// RoundKm rounds a distance to two decimal places.
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
