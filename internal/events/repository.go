package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles analytics event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records one event.
func (r *Repository) Insert(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (kind, tag_id, owner_id, booking_id, referrer, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		e.Kind, e.TagID, e.OwnerID, e.BookingID, e.Referrer, e.Metadata,
	).Scan(&e.ID, &e.CreatedAt)
}

// CountsByKind returns per-kind event counts for a tag.
func (r *Repository) CountsByKind(ctx context.Context, tagID uuid.UUID) (map[string]int, error) {
	const q = `SELECT kind, COUNT(*) FROM events WHERE tag_id = $1 GROUP BY kind`
	rows, err := r.pool.Query(ctx, q, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// TopReferrers returns the most common referrers for a tag's visits.
func (r *Repository) TopReferrers(ctx context.Context, tagID uuid.UUID, limit int) (map[string]int, error) {
	const q = `SELECT referrer, COUNT(*) AS n FROM events
		WHERE tag_id = $1 AND referrer IS NOT NULL
		GROUP BY referrer ORDER BY n DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, tagID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var ref string
		var n int
		if err := rows.Scan(&ref, &n); err != nil {
			return nil, err
		}
		out[ref] = n
	}
	return out, rows.Err()
}
