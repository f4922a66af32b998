package bookings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles booking persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bookings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `id, tag_id, requester_name, requester_email, requester_phone, preferred_at, message, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.TagID, &b.RequesterName, &b.RequesterEmail, &b.RequesterPhone,
		&b.PreferredAt, &b.Message, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new pending booking.
func (r *Repository) Create(ctx context.Context, b *models.Booking) error {
	const q = `INSERT INTO bookings (tag_id, requester_name, requester_email, requester_phone, preferred_at, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, b.TagID, b.RequesterName, b.RequesterEmail, b.RequesterPhone,
		b.PreferredAt, b.Message, b.Status).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetByID returns a booking by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// ListByTag returns all bookings for a tag, newest first.
func (r *Repository) ListByTag(ctx context.Context, tagID uuid.UUID) ([]models.Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE tag_id = $1 ORDER BY created_at DESC`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// UpdateStatus persists a status transition.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}
