package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// BookingRepo implements ports.BookingRepository with pgx.
type BookingRepo struct {
	db *DB
}

// NewBookingRepo creates a new BookingRepo.
func NewBookingRepo(db *DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// Insert stores a booking.
func (r *BookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO bookings (id, created_at, bag_count, dropoff_time, pickup_time,
		                      is_paid, is_cancelled, checked_in, checked_out,
		                      stashpoint_id, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET bag_count = EXCLUDED.bag_count,
		    dropoff_time = EXCLUDED.dropoff_time, pickup_time = EXCLUDED.pickup_time,
		    is_paid = EXCLUDED.is_paid, is_cancelled = EXCLUDED.is_cancelled,
		    checked_in = EXCLUDED.checked_in, checked_out = EXCLUDED.checked_out
	`, b.ID, b.CreatedAt, b.BagCount, b.DropoffTime.UTC(), b.PickupTime.UTC(),
		b.IsPaid, b.IsCancelled, b.CheckedIn, b.CheckedOut,
		b.StashpointID, b.CustomerID)
	return err
}

// ListActive returns every non-cancelled booking.
func (r *BookingRepo) ListActive(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, customer_id, stashpoint_id, bag_count, dropoff_time, pickup_time,
		       is_paid, is_cancelled, checked_in, checked_out, created_at
		FROM bookings
		WHERE NOT is_cancelled
		ORDER BY dropoff_time, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.CustomerID, &b.StashpointID, &b.BagCount, &b.DropoffTime, &b.PickupTime,
			&b.IsPaid, &b.IsCancelled, &b.CheckedIn, &b.CheckedOut, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BookedBags sums overlapping bag counts at one stashpoint. A booking
// overlaps [dropoff, pickup) unless it is cancelled or only touches it.
func (r *BookingRepo) BookedBags(ctx context.Context, stashpointID string, w domain.Window) (int, error) {
	var total int
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(bag_count), 0)
		FROM bookings
		WHERE stashpoint_id = $1
		  AND NOT is_cancelled
		  AND dropoff_time < $3
		  AND pickup_time > $2
	`, stashpointID, w.Dropoff.UTC(), w.Pickup.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum booked bags: %w", err)
	}
	return total, nil
}

// BookedBagsByLocation sums overlapping bag counts for many stashpoints in
// one grouped aggregation.
func (r *BookingRepo) BookedBagsByLocation(ctx context.Context, stashpointIDs []string, w domain.Window) (map[string]int, error) {
	out := make(map[string]int, len(stashpointIDs))
	if len(stashpointIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT stashpoint_id, SUM(bag_count)
		FROM bookings
		WHERE stashpoint_id = ANY($1)
		  AND NOT is_cancelled
		  AND dropoff_time < $3
		  AND pickup_time > $2
		GROUP BY stashpoint_id
	`, stashpointIDs, w.Dropoff.UTC(), w.Pickup.UTC())
	if err != nil {
		return nil, fmt.Errorf("sum booked bags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			total int
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}
