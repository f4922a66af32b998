package tags

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles tag persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tag repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tagColumns = `id, owner_id, slug, name, description, bookings_enabled, contact_email, hidden, image_key, qr_key, created_at, updated_at`

func scanTag(row interface{ Scan(...any) error }) (*models.Tag, error) {
	var t models.Tag
	err := row.Scan(&t.ID, &t.OwnerID, &t.Slug, &t.Name, &t.Description, &t.BookingsEnabled,
		&t.ContactEmail, &t.Hidden, &t.ImageKey, &t.QRKey, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new tag.
func (r *Repository) Create(ctx context.Context, t *models.Tag) error {
	const q = `INSERT INTO tags (owner_id, slug, name, description, bookings_enabled, contact_email, hidden)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.OwnerID, t.Slug, t.Name, t.Description, t.BookingsEnabled, t.ContactEmail, t.Hidden).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a tag by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	return scanTag(r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
}

// GetBySlug returns a tag by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	return scanTag(r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE slug = $1`, slug))
}

// ListPublic returns all non-hidden tags, newest first.
func (r *Repository) ListPublic(ctx context.Context) ([]models.Tag, error) {
	return r.list(ctx, `SELECT `+tagColumns+` FROM tags WHERE hidden = FALSE ORDER BY created_at DESC`)
}

// ListByOwner returns all tags owned by a user, including hidden ones.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Tag, error) {
	return r.list(ctx, `SELECT `+tagColumns+` FROM tags WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Update persists mutable tag fields.
func (r *Repository) Update(ctx context.Context, t *models.Tag) error {
	const q = `UPDATE tags SET name = $1, description = $2, bookings_enabled = $3, contact_email = $4, hidden = $5, updated_at = NOW()
		WHERE id = $6 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, t.Name, t.Description, t.BookingsEnabled, t.ContactEmail, t.Hidden, t.ID).Scan(&t.UpdatedAt)
}

// SetQRKey stores the S3 key of the generated QR code.
func (r *Repository) SetQRKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tags SET qr_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	return err
}

// SetImageKey stores the S3 key of the tag cover image.
func (r *Repository) SetImageKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tags SET image_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	return err
}

// Delete removes a tag by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	return err
}
