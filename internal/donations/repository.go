package donations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles donation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a donations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert records a gateway payment event. Replays of the same
// provider_payment_id update the status in place instead of inserting a
// duplicate row.
func (r *Repository) Upsert(ctx context.Context, d *models.Donation) error {
	const q = `INSERT INTO donations (tag_id, amount_cents, currency, donor_name, message, provider_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_payment_id)
		DO UPDATE SET status = EXCLUDED.status
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		d.TagID, d.AmountCents, d.Currency, d.DonorName, d.Message, d.ProviderPaymentID, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

// ListByTag returns donations for a tag, newest first.
func (r *Repository) ListByTag(ctx context.Context, tagID uuid.UUID) ([]models.Donation, error) {
	const q = `SELECT id, tag_id, amount_cents, currency, donor_name, message, provider_payment_id, status, created_at
		FROM donations WHERE tag_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Donation
	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(&d.ID, &d.TagID, &d.AmountCents, &d.Currency, &d.DonorName, &d.Message, &d.ProviderPaymentID, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// TotalForTag returns the sum of succeeded donations in cents.
func (r *Repository) TotalForTag(ctx context.Context, tagID uuid.UUID) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_cents), 0) FROM donations WHERE tag_id = $1 AND status = $2`
	var total int64
	err := r.pool.QueryRow(ctx, q, tagID, models.DonationStatusSucceeded).Scan(&total)
	return total, err
}
