package postgres

import (
	"context"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// CustomerRepo implements ports.CustomerRepository with pgx.
type CustomerRepo struct {
	db *DB
}

func NewCustomerRepo(db *DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) Upsert(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO customers (id, created_at, email, name, phone)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name, phone = EXCLUDED.phone
	`, c.ID, c.CreatedAt, c.Email, c.Name, c.Phone)
	return err
}
