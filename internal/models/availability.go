package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlockStatus is the owner-managed lifecycle state of an availability block.
// Stored status is not authoritative for expiry or capacity exhaustion: a
// live block with zero remaining capacity or a past end time is unavailable
// regardless of what status says.
type BlockStatus string

const (
	BlockStatusDraft   BlockStatus = "draft"
	BlockStatusLive    BlockStatus = "live"
	BlockStatusPaused  BlockStatus = "paused"
	BlockStatusSoldOut BlockStatus = "sold_out"
	BlockStatusExpired BlockStatus = "expired"
)

// Valid reports whether s is a known block status.
func (s BlockStatus) Valid() bool {
	switch s {
	case BlockStatusDraft, BlockStatusLive, BlockStatusPaused, BlockStatusSoldOut, BlockStatusExpired:
		return true
	}
	return false
}

// BlockActionType is what a visitor does against a block.
type BlockActionType string

const (
	BlockActionBook    BlockActionType = "book"
	BlockActionOrder   BlockActionType = "order"
	BlockActionReserve BlockActionType = "reserve"
	BlockActionEnquire BlockActionType = "enquire"
	BlockActionPay     BlockActionType = "pay"
)

// Valid reports whether a is a known action type.
func (a BlockActionType) Valid() bool {
	switch a {
	case BlockActionBook, BlockActionOrder, BlockActionReserve, BlockActionEnquire, BlockActionPay:
		return true
	}
	return false
}

// BlockVisibility controls who can see a block.
type BlockVisibility string

const (
	BlockVisibilityPublic   BlockVisibility = "public"
	BlockVisibilityUnlisted BlockVisibility = "unlisted"
	BlockVisibilityPrivate  BlockVisibility = "private"
)

// Valid reports whether v is a known visibility.
func (v BlockVisibility) Valid() bool {
	switch v {
	case BlockVisibilityPublic, BlockVisibilityUnlisted, BlockVisibilityPrivate:
		return true
	}
	return false
}

// AvailabilityBlock is an owner-defined offering visitors can act on.
// Absence of both StartAt and EndAt means "always available". A nil
// CapacityTotal means unlimited; CapacityRemaining mirrors CapacityTotal at
// creation, is decremented on consumption, and must stay within
// [0, CapacityTotal].
type AvailabilityBlock struct {
	ID                uuid.UUID       `json:"id"`
	TagID             uuid.UUID       `json:"tag_id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	Title             string          `json:"title"`
	Description       *string         `json:"description,omitempty"`
	StartAt           *time.Time      `json:"start_at,omitempty"`
	EndAt             *time.Time      `json:"end_at,omitempty"`
	Timezone          string          `json:"timezone"`
	CapacityTotal     *int            `json:"capacity_total,omitempty"`
	CapacityRemaining *int            `json:"capacity_remaining,omitempty"`
	Status            BlockStatus     `json:"status"`
	ActionType        BlockActionType `json:"action_type"`
	PriceCents        *int            `json:"price_cents,omitempty"`
	Currency          string          `json:"currency"`
	Visibility        BlockVisibility `json:"visibility"`
	SortRank          int             `json:"sort_rank"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SoldOut reports whether the block is capacity-exhausted. Unlimited blocks
// are never sold out.
func (b *AvailabilityBlock) SoldOut() bool {
	return b.CapacityTotal != nil && b.CapacityRemaining != nil && *b.CapacityRemaining <= 0
}

// Past reports whether the block's window has ended as of now.
func (b *AvailabilityBlock) Past(now time.Time) bool {
	return b.EndAt != nil && b.EndAt.Before(now)
}

// AlwaysAvailable reports whether the block has no time window at all.
func (b *AvailabilityBlock) AlwaysAvailable() bool {
	return b.StartAt == nil && b.EndAt == nil
}

// EffectivelyLive reports whether the public may act on the block right now.
func (b *AvailabilityBlock) EffectivelyLive(now time.Time) bool {
	return b.Status == BlockStatusLive && !b.SoldOut() && !b.Past(now)
}
