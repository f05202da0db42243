package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/samirrijal/stashpoint/internal/core/availability"
	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// searchMargin widens the PostGIS prefilter so that spheroid/sphere
// differences never drop a stashpoint the haversine check would keep.
const searchMargin = 1.01

// StashpointRepo implements ports.StashpointRepository with pgx.
type StashpointRepo struct {
	db *DB
}

// NewStashpointRepo creates a new StashpointRepo.
func NewStashpointRepo(db *DB) *StashpointRepo {
	return &StashpointRepo{db: db}
}

const stashpointColumns = `
	id, name, COALESCE(description, ''), address, postal_code,
	latitude, longitude, capacity, open_from, open_until, created_at`

// Upsert inserts or updates a stashpoint. The geography point is always
// rebuilt from latitude/longitude.
func (r *StashpointRepo) Upsert(ctx context.Context, sp *domain.Stashpoint) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO stashpoints (id, name, description, address, postal_code,
		                         latitude, longitude, location, capacity, open_from, open_until, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7,
		        ST_SetSRID(ST_MakePoint($7, $6), 4326)::geography, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    address = EXCLUDED.address, postal_code = EXCLUDED.postal_code,
		    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
		    location = EXCLUDED.location, capacity = EXCLUDED.capacity,
		    open_from = EXCLUDED.open_from, open_until = EXCLUDED.open_until
	`, sp.ID, sp.Name, sp.Description, sp.Address, sp.PostalCode,
		sp.Latitude, sp.Longitude, sp.Capacity,
		toPgTime(sp.OpenFrom), toPgTime(sp.OpenUntil), sp.CreatedAt)
	return err
}

// GetByID returns a stashpoint by id.
func (r *StashpointRepo) GetByID(ctx context.Context, id string) (*domain.Stashpoint, error) {
	row := r.db.q(ctx).QueryRow(ctx, `SELECT `+stashpointColumns+` FROM stashpoints WHERE id = $1`, id)
	sp, err := scanStashpoint(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return sp, nil
}

// GetByIDs returns the stashpoints among ids.
func (r *StashpointRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Stashpoint, error) {
	if len(ids) == 0 {
		return []domain.Stashpoint{}, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+stashpointColumns+` FROM stashpoints WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Stashpoint, 0, len(ids))
	for rows.Next() {
		sp, err := scanStashpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// List returns every stashpoint ordered by creation.
func (r *StashpointRepo) List(ctx context.Context) ([]domain.Stashpoint, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+stashpointColumns+` FROM stashpoints ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Stashpoint
	for rows.Next() {
		sp, err := scanStashpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// FindCandidates narrows stashpoints with ST_DWithin on the GiST index and
// the opening-hours columns, then applies the exact haversine radius and
// ordering in Go so results match the in-memory store.
func (r *StashpointRepo) FindCandidates(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+stashpointColumns+`
		FROM stashpoints
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
		  AND open_from <= $4
		  AND open_until >= $5
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, false), id
	`, origin.Lon, origin.Lat, radiusKm*1000*searchMargin,
		toPgTime(domain.TimeOfDayOf(w.Dropoff)), toPgTime(domain.TimeOfDayOf(w.Pickup)))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var nearby []domain.Stashpoint
	for rows.Next() {
		sp, err := scanStashpoint(rows)
		if err != nil {
			return nil, err
		}
		nearby = append(nearby, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return availability.FilterCandidates(nearby, origin, radiusKm, w), nil
}

func scanStashpoint(row pgx.Row) (*domain.Stashpoint, error) {
	var (
		sp          domain.Stashpoint
		from, until pgtype.Time
	)
	if err := row.Scan(
		&sp.ID, &sp.Name, &sp.Description, &sp.Address, &sp.PostalCode,
		&sp.Latitude, &sp.Longitude, &sp.Capacity, &from, &until, &sp.CreatedAt,
	); err != nil {
		return nil, err
	}
	sp.OpenFrom = fromPgTime(from)
	sp.OpenUntil = fromPgTime(until)
	return &sp, nil
}

func toPgTime(t domain.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPgTime(t pgtype.Time) domain.TimeOfDay {
	return domain.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}
