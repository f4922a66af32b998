package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row for one logical send.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (booking_id, tag_id, email_type, recipient_email, subject, dedup_key, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		el.BookingID, el.TagID, el.EmailType, el.RecipientEmail, el.Subject, el.DedupKey, el.Status, el.Attempts,
	).Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful delivery and the attempts it took.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	const q = `UPDATE email_logs SET status = $2, attempts = $3, sent_at = $4, error_message = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusSent, attempts, time.Now().UTC())
	return err
}

// MarkFailed records a terminal failure with the last error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error {
	const q = `UPDATE email_logs SET status = $2, attempts = $3, error_message = $4 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusFailed, attempts, errMsg)
	return err
}

// ListByTag returns email logs for a tag's bookings, newest first.
func (r *Repository) ListByTag(ctx context.Context, tagID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, booking_id, tag_id, email_type, recipient_email, subject, dedup_key, status, attempts, sent_at, error_message, created_at
		FROM email_logs
		WHERE tag_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.BookingID, &el.TagID, &el.EmailType, &el.RecipientEmail, &subject, &el.DedupKey, &el.Status, &el.Attempts, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

// ListByBooking returns email logs for a single booking, oldest first.
func (r *Repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, booking_id, tag_id, email_type, recipient_email, subject, dedup_key, status, attempts, sent_at, error_message, created_at
		FROM email_logs
		WHERE booking_id = $1
		ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.BookingID, &el.TagID, &el.EmailType, &el.RecipientEmail, &subject, &el.DedupKey, &el.Status, &el.Attempts, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
