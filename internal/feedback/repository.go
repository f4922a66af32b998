package feedback

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles feedback persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a feedback entry.
func (r *Repository) Create(ctx context.Context, f *models.Feedback) error {
	const q = `INSERT INTO feedback (tag_id, rating, comment, author_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, f.TagID, f.Rating, f.Comment, f.AuthorName).
		Scan(&f.ID, &f.CreatedAt)
}

// ListByTag returns feedback for a tag, newest first.
func (r *Repository) ListByTag(ctx context.Context, tagID uuid.UUID) ([]models.Feedback, error) {
	const q = `SELECT id, tag_id, rating, comment, author_name, created_at
		FROM feedback WHERE tag_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.TagID, &f.Rating, &f.Comment, &f.AuthorName, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// Summary returns the count and average rating for a tag. Average is zero
// when there is no feedback.
func (r *Repository) Summary(ctx context.Context, tagID uuid.UUID) (count int, average float64, err error) {
	const q = `SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback WHERE tag_id = $1`
	err = r.pool.QueryRow(ctx, q, tagID).Scan(&count, &average)
	return count, average, err
}
