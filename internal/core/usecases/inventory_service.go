package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
)

// InventoryService bulk-loads customers, stashpoints and bookings, e.g. from
// a seed fixture.
type InventoryService struct {
	customers   ports.CustomerRepository
	stashpoints ports.StashpointRepository
	bookings    ports.BookingRepository
	events      ports.EventPublisher
	now         func() time.Time
}

// NewInventoryService creates a new InventoryService. events may be nil.
func NewInventoryService(
	customers ports.CustomerRepository,
	stashpoints ports.StashpointRepository,
	bookings ports.BookingRepository,
	events ports.EventPublisher,
) *InventoryService {
	return &InventoryService{
		customers:   customers,
		stashpoints: stashpoints,
		bookings:    bookings,
		events:      events,
		now:         time.Now,
	}
}

// NewID returns a 32-character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Import validates and writes inv. Missing IDs and creation times are filled
// in place. On success an inventory change is announced.
func (s *InventoryService) Import(ctx context.Context, inv *domain.Inventory) (*domain.InventoryChange, error) {
	if err := ValidateInventory(inv); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range inv.Customers {
		c := &inv.Customers[i]
		if c.ID == "" {
			c.ID = NewID()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if err := s.customers.Upsert(ctx, c); err != nil {
			return nil, fmt.Errorf("upsert customer %s: %w", c.ID, err)
		}
	}

	ids := make([]string, 0, len(inv.Stashpoints))
	for i := range inv.Stashpoints {
		sp := &inv.Stashpoints[i]
		if sp.ID == "" {
			sp.ID = NewID()
		}
		if sp.CreatedAt.IsZero() {
			sp.CreatedAt = now
		}
		if err := s.stashpoints.Upsert(ctx, sp); err != nil {
			return nil, fmt.Errorf("upsert stashpoint %s: %w", sp.ID, err)
		}
		ids = append(ids, sp.ID)
	}

	for i := range inv.Bookings {
		b := &inv.Bookings[i]
		if b.ID == "" {
			b.ID = NewID()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.DropoffTime = b.DropoffTime.UTC()
		b.PickupTime = b.PickupTime.UTC()
		if err := s.bookings.Insert(ctx, b); err != nil {
			return nil, fmt.Errorf("insert booking %s: %w", b.ID, err)
		}
	}

	change := &domain.InventoryChange{
		Time:          now,
		Source:        "import",
		StashpointIDs: ids,
		Bookings:      len(inv.Bookings),
	}
	if s.events != nil {
		if err := s.events.PublishInventoryChanged(ctx, change); err != nil {
			logging.FromContext(ctx).Warn("publish inventory change failed", "error", err)
		}
	}

	logging.FromContext(ctx).Info("inventory imported",
		"customers", len(inv.Customers),
		"stashpoints", len(inv.Stashpoints),
		"bookings", len(inv.Bookings),
	)
	return change, nil
}

// ValidateInventory checks field ranges. Cross references between records
// are left to the store.
func ValidateInventory(inv *domain.Inventory) error {
	fields := make(map[string]string)

	for i, c := range inv.Customers {
		if c.Email == "" {
			fields[fmt.Sprintf("customers[%d].email", i)] = "Email is required."
		}
		if c.Name == "" {
			fields[fmt.Sprintf("customers[%d].name", i)] = "Name is required."
		}
	}

	for i, sp := range inv.Stashpoints {
		prefix := fmt.Sprintf("stashpoints[%d].", i)
		if sp.Name == "" {
			fields[prefix+"name"] = "Name is required."
		}
		if sp.Latitude < -90 || sp.Latitude > 90 {
			fields[prefix+"latitude"] = "Latitude must be between -90 and 90."
		}
		if sp.Longitude < -180 || sp.Longitude > 180 {
			fields[prefix+"longitude"] = "Longitude must be between -180 and 180."
		}
		if sp.Capacity < 0 {
			fields[prefix+"capacity"] = "Capacity cannot be negative."
		}
		if sp.OpenFrom > sp.OpenUntil {
			fields[prefix+"open_until"] = "Closing time must not be before opening time."
		}
	}

	for i, b := range inv.Bookings {
		prefix := fmt.Sprintf("bookings[%d].", i)
		if b.StashpointID == "" {
			fields[prefix+"stashpoint_id"] = "Stashpoint is required."
		}
		if b.CustomerID == "" {
			fields[prefix+"customer_id"] = "Customer is required."
		}
		if b.BagCount < 0 {
			fields[prefix+"bag_count"] = "Bag count cannot be negative."
		}
		if !b.PickupTime.After(b.DropoffTime) {
			fields[prefix+"pickup_time"] = "Pickup datetime must be after dropoff datetime."
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
