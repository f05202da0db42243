package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Naive ISO 8601 layouts; fractional seconds are accepted after the seconds
// field without being spelled out.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var offsetLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

// ParseDateTime reads an ISO 8601 datetime as naive UTC. A trailing "Z" is
// dropped, an explicit offset is converted to UTC and a value without zone
// is taken to be UTC already.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n := len(s); n > 0 && (s[n-1] == 'Z' || s[n-1] == 'z') {
		s = s[:n-1]
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 datetime %q", s)
}

// Window is the requested storage interval [Dropoff, Pickup) in naive UTC.
type Window struct {
	Dropoff time.Time `json:"dropoff"`
	Pickup  time.Time `json:"pickup"`
}

// SearchQuery asks for stashpoints around a point that can hold BagCount
// bags for the whole window. RadiusKm <= 0 means "use the configured default".
type SearchQuery struct {
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Dropoff  time.Time `json:"dropoff"`
	Pickup   time.Time `json:"pickup"`
	BagCount int       `json:"bag_count"`
	RadiusKm float64   `json:"radius_km,omitempty"`
}

// Origin returns the query point.
func (q SearchQuery) Origin() GeoPoint {
	return GeoPoint{Lat: q.Lat, Lon: q.Lng}
}

// Window returns the requested interval.
func (q SearchQuery) Window() Window {
	return Window{Dropoff: q.Dropoff, Pickup: q.Pickup}
}

// Validate checks the query the way the public API does. The search engine
// itself does not call it: it trusts its caller and tolerates BagCount == 0.
// A zero RadiusKm is accepted here since it selects the default radius.
func (q SearchQuery) Validate() error {
	fields := make(map[string]string)

	if !(q.Lat >= -90 && q.Lat <= 90) {
		fields["lat"] = "Latitude must be between -90 and 90."
	}
	if !(q.Lng >= -180 && q.Lng <= 180) {
		fields["lng"] = "Longitude must be between -180 and 180."
	}
	if q.BagCount < 1 {
		fields["bag_count"] = "Bag count cannot be less than 1."
	}
	if q.RadiusKm < 0 || math.IsNaN(q.RadiusKm) {
		fields["radius_km"] = "Search radius must be a positive number."
	}
	if q.Dropoff.IsZero() {
		fields["dropoff"] = "Missing 'dropoff' query parameter."
	}
	if q.Pickup.IsZero() {
		fields["pickup"] = "Missing 'pickup' query parameter."
	}
	if !q.Dropoff.IsZero() && !q.Pickup.IsZero() && !q.Pickup.After(q.Dropoff) {
		fields["pickup"] = "Pickup datetime must be after dropoff datetime."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
