package domain

import (
	"time"
)

// Stashpoint is a venue that stores customers' bags.
type Stashpoint struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	PostalCode  string    `json:"postal_code"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Capacity    int       `json:"capacity"`
	OpenFrom    TimeOfDay `json:"open_from"`
	OpenUntil   TimeOfDay `json:"open_until"`
	CreatedAt   time.Time `json:"created_at"`
}

// Point returns the stashpoint position. It is always derived from
// Latitude/Longitude so the two can never disagree.
func (s Stashpoint) Point() GeoPoint {
	return GeoPoint{Lat: s.Latitude, Lon: s.Longitude}
}

// Booking reserves bag slots at a stashpoint for [DropoffTime, PickupTime).
// Times are naive UTC wall-clock values.
type Booking struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	StashpointID string    `json:"stashpoint_id"`
	BagCount     int       `json:"bag_count"`
	DropoffTime  time.Time `json:"dropoff_time"`
	PickupTime   time.Time `json:"pickup_time"`
	IsPaid       bool      `json:"is_paid"`
	IsCancelled  bool      `json:"is_cancelled"`
	CheckedIn    bool      `json:"checked_in"`
	CheckedOut   bool      `json:"checked_out"`
	CreatedAt    time.Time `json:"created_at"`
}

// Customer owns bookings.
type Customer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a stashpoint that passed the radius and opening-hours filter.
type Candidate struct {
	Stashpoint Stashpoint `json:"stashpoint"`
	DistanceKm float64    `json:"distance_km"` // unrounded
}

// SearchResult is an available stashpoint as returned to API clients.
type SearchResult struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Address           string    `json:"address"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	DistanceKm        float64   `json:"distance_km"`
	Capacity          int       `json:"capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	OpenFrom          TimeOfDay `json:"open_from"`
	OpenUntil         TimeOfDay `json:"open_until"`
}

// CapacityAnomaly records a stashpoint holding more bags than its capacity
// at some instant of a window. BookedBags is that peak, reached at PeakAt.
// It is reported, never corrected.
type CapacityAnomaly struct {
	StashpointID      string    `json:"stashpoint_id"`
	Name              string    `json:"name"`
	Capacity          int       `json:"capacity"`
	BookedBags        int       `json:"booked_bags"`
	AvailableCapacity int       `json:"available_capacity"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	PeakAt            time.Time `json:"peak_at"`
	DetectedAt        time.Time `json:"detected_at"`
}

// SearchEvent is published after every successful search.
type SearchEvent struct {
	Time       time.Time `json:"time"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RadiusKm   float64   `json:"radius_km"`
	BagCount   int       `json:"bag_count"`
	Dropoff    time.Time `json:"dropoff"`
	Pickup     time.Time `json:"pickup"`
	Candidates int       `json:"candidates"`
	Results    int       `json:"results"`
}

// InventoryChange announces that stashpoints or bookings were written.
type InventoryChange struct {
	Time          time.Time `json:"time"`
	Source        string    `json:"source"`
	StashpointIDs []string  `json:"stashpoint_ids,omitempty"`
	Bookings      int       `json:"bookings"`
}

// Inventory is a bulk import payload (seed fixtures).
type Inventory struct {
	Customers   []Customer   `json:"customers"`
	Stashpoints []Stashpoint `json:"stashpoints"`
	Bookings    []Booking    `json:"bookings"`
}
