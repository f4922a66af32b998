package availability

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omninet-app/backend/internal/models"
)

// Repository handles availability block persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an availability repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const blockColumns = `id, tag_id, owner_id, title, description, start_at, end_at, timezone,
	capacity_total, capacity_remaining, status, action_type, price_cents, currency,
	visibility, sort_rank, metadata, created_at, updated_at`

func scanBlock(row interface{ Scan(...any) error }) (*models.AvailabilityBlock, error) {
	var b models.AvailabilityBlock
	err := row.Scan(&b.ID, &b.TagID, &b.OwnerID, &b.Title, &b.Description, &b.StartAt, &b.EndAt, &b.Timezone,
		&b.CapacityTotal, &b.CapacityRemaining, &b.Status, &b.ActionType, &b.PriceCents, &b.Currency,
		&b.Visibility, &b.SortRank, &b.Metadata, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new block.
func (r *Repository) Create(ctx context.Context, b *models.AvailabilityBlock) error {
	const q = `INSERT INTO availability_blocks
		(tag_id, owner_id, title, description, start_at, end_at, timezone, capacity_total, capacity_remaining,
		 status, action_type, price_cents, currency, visibility, sort_rank, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		b.TagID, b.OwnerID, b.Title, b.Description, b.StartAt, b.EndAt, b.Timezone,
		b.CapacityTotal, b.CapacityRemaining, b.Status, b.ActionType, b.PriceCents,
		b.Currency, b.Visibility, b.SortRank, b.Metadata).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetByID returns a block by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	return scanBlock(r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM availability_blocks WHERE id = $1`, id))
}

// ListByTag returns all blocks for a tag, unsorted; callers classify and order.
func (r *Repository) ListByTag(ctx context.Context, tagID uuid.UUID) ([]models.AvailabilityBlock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+blockColumns+` FROM availability_blocks WHERE tag_id = $1`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AvailabilityBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// Update persists mutable block fields.
func (r *Repository) Update(ctx context.Context, b *models.AvailabilityBlock) error {
	const q = `UPDATE availability_blocks SET
		title = $1, description = $2, start_at = $3, end_at = $4, timezone = $5,
		capacity_total = $6, capacity_remaining = $7, status = $8, action_type = $9,
		price_cents = $10, currency = $11, visibility = $12, sort_rank = $13, metadata = $14,
		updated_at = NOW()
		WHERE id = $15 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q,
		b.Title, b.Description, b.StartAt, b.EndAt, b.Timezone,
		b.CapacityTotal, b.CapacityRemaining, b.Status, b.ActionType,
		b.PriceCents, b.Currency, b.Visibility, b.SortRank, b.Metadata, b.ID).
		Scan(&b.UpdatedAt)
}

// UpdateStatus sets only the status column.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.BlockStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE availability_blocks SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes a block.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM availability_blocks WHERE id = $1`, id)
	return err
}

// Consume atomically takes one unit of capacity. The decrement is a single
// conditional UPDATE so two concurrent claims can never both take the last
// unit: the WHERE clause re-checks liveness, expiry and remaining capacity
// inside the statement. Unlimited blocks (NULL capacity) pass through
// untouched. Returns pgx.ErrNoRows when the block is not consumable.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	const q = `UPDATE availability_blocks
		SET capacity_remaining = capacity_remaining - 1, updated_at = NOW()
		WHERE id = $1
		  AND status = 'live'
		  AND (end_at IS NULL OR end_at > NOW())
		  AND (capacity_remaining IS NULL OR capacity_remaining > 0)
		RETURNING ` + blockColumns
	return scanBlock(r.pool.QueryRow(ctx, q, id))
}
