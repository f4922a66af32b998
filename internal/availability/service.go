package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
)

// Service errors.
var (
	ErrBlockNotFound = errors.New("availability block not found")
	ErrTagNotFound   = errors.New("tag not found")
	ErrNotOwner      = errors.New("acting user is not the tag owner")
	// ErrUnavailable is the conflict outcome of a claim: the block exists but
	// is sold out, paused, expired or otherwise not consumable right now.
	ErrUnavailable = errors.New("block is not available")
)

// ValidationError is a rejected-input error with a caller-facing reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BlockStore is the persistence the ledger needs.
type BlockStore interface {
	Create(ctx context.Context, b *models.AvailabilityBlock) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error)
	ListByTag(ctx context.Context, tagID uuid.UUID) ([]models.AvailabilityBlock, error)
	Update(ctx context.Context, b *models.AvailabilityBlock) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.BlockStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	Consume(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error)
}

// TagStore resolves tag ownership.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// EventRecorder records funnel events; claim consumption is tracked through it.
type EventRecorder interface {
	Insert(ctx context.Context, e *models.Event) error
}

// Service owns availability blocks and their capacity ledger. Bookings and
// block capacity are deliberately independent: declining or cancelling a
// booking never returns capacity to any block.
type Service struct {
	store  BlockStore
	tags   TagStore
	events EventRecorder
	logger *zap.Logger
}

// NewService creates an availability service. events may be nil.
func NewService(store BlockStore, tags TagStore, events EventRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tags: tags, events: events, logger: logger}
}

// CreateInput carries the owner-supplied fields for a new block.
type CreateInput struct {
	TagID         uuid.UUID
	Title         string
	Description   *string
	StartAt       *time.Time
	EndAt         *time.Time
	Timezone      string
	CapacityTotal *int
	Status        models.BlockStatus
	ActionType    models.BlockActionType
	PriceCents    *int
	Currency      string
	Visibility    models.BlockVisibility
	SortRank      int
	Metadata      json.RawMessage
}

func (in *CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if in.StartAt == nil && in.EndAt != nil {
		return &ValidationError{Field: "end_at", Reason: "an end without a start is invalid"}
	}
	if in.StartAt != nil && in.EndAt != nil && in.EndAt.Before(*in.StartAt) {
		return &ValidationError{Field: "end_at", Reason: "must not be before start_at"}
	}
	if in.CapacityTotal != nil && *in.CapacityTotal < 0 {
		return &ValidationError{Field: "capacity_total", Reason: "must not be negative"}
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return &ValidationError{Field: "price_cents", Reason: "must not be negative"}
	}
	if in.Status != "" && !in.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	if in.ActionType != "" && !in.ActionType.Valid() {
		return &ValidationError{Field: "action_type", Reason: "unknown action type"}
	}
	if in.Visibility != "" && !in.Visibility.Valid() {
		return &ValidationError{Field: "visibility", Reason: "unknown visibility"}
	}
	return nil
}

// Create validates and persists a new block for actorID, who must own the
// tag. capacity_remaining starts equal to capacity_total; both stay nil for
// unlimited blocks.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in CreateInput) (*models.AvailabilityBlock, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tag, err := s.tags.GetByID(ctx, in.TagID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("load tag: %w", err)
	}
	if tag.OwnerID != actorID {
		return nil, ErrNotOwner
	}

	b := &models.AvailabilityBlock{
		TagID:         tag.ID,
		OwnerID:       tag.OwnerID,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		Timezone:      defaultString(in.Timezone, "UTC"),
		CapacityTotal: in.CapacityTotal,
		Status:        defaultStatus(in.Status),
		ActionType:    defaultAction(in.ActionType),
		PriceCents:    in.PriceCents,
		Currency:      defaultString(in.Currency, "USD"),
		Visibility:    defaultVisibility(in.Visibility),
		SortRank:      in.SortRank,
		Metadata:      in.Metadata,
	}
	if in.CapacityTotal != nil {
		remaining := *in.CapacityTotal
		b.CapacityRemaining = &remaining
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	return b, nil
}

// Duplicate copies a block as a fresh draft. Capacity is reset to the total,
// so the copy starts full regardless of the source's consumption history.
func (s *Service) Duplicate(ctx context.Context, actorID, blockID uuid.UUID) (*models.AvailabilityBlock, error) {
	src, err := s.ownedBlock(ctx, actorID, blockID)
	if err != nil {
		return nil, err
	}

	cp := *src
	cp.ID = uuid.Nil
	cp.Status = models.BlockStatusDraft
	cp.CapacityRemaining = nil
	if cp.CapacityTotal != nil {
		remaining := *cp.CapacityTotal
		cp.CapacityRemaining = &remaining
	}
	if err := s.store.Create(ctx, &cp); err != nil {
		return nil, fmt.Errorf("duplicate block: %w", err)
	}
	return &cp, nil
}

// UpdateInput patches a block; nil fields are left unchanged.
type UpdateInput struct {
	Title         *string
	Description   *string
	StartAt       *time.Time
	EndAt         *time.Time
	ClearWindow   bool // drop both start and end, making the block always available
	Timezone      *string
	CapacityTotal *int
	ClearCapacity bool // drop the limit, making the block unlimited
	PriceCents    *int
	Visibility    *models.BlockVisibility
	SortRank      *int
	Metadata      json.RawMessage
}

// Update applies a patch to an owned block.
func (s *Service) Update(ctx context.Context, actorID, blockID uuid.UUID, in UpdateInput) (*models.AvailabilityBlock, error) {
	b, err := s.ownedBlock(ctx, actorID, blockID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "required"}
		}
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		b.Description = in.Description
	}
	if in.ClearWindow {
		b.StartAt, b.EndAt = nil, nil
	}
	if in.StartAt != nil {
		b.StartAt = in.StartAt
	}
	if in.EndAt != nil {
		b.EndAt = in.EndAt
	}
	if b.StartAt == nil && b.EndAt != nil {
		return nil, &ValidationError{Field: "end_at", Reason: "an end without a start is invalid"}
	}
	if in.Timezone != nil {
		b.Timezone = *in.Timezone
	}
	if in.ClearCapacity {
		b.CapacityTotal, b.CapacityRemaining = nil, nil
	}
	if in.CapacityTotal != nil {
		if *in.CapacityTotal < 0 {
			return nil, &ValidationError{Field: "capacity_total", Reason: "must not be negative"}
		}
		// A capacity change keeps the units already consumed; remaining is
		// re-derived from the new total and never exceeds it.
		consumed := 0
		if b.CapacityTotal != nil && b.CapacityRemaining != nil {
			consumed = *b.CapacityTotal - *b.CapacityRemaining
		}
		remaining := *in.CapacityTotal - consumed
		if remaining < 0 {
			remaining = 0
		}
		b.CapacityTotal = in.CapacityTotal
		b.CapacityRemaining = &remaining
	}
	if in.PriceCents != nil {
		b.PriceCents = in.PriceCents
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return nil, &ValidationError{Field: "visibility", Reason: "unknown visibility"}
		}
		b.Visibility = *in.Visibility
	}
	if in.SortRank != nil {
		b.SortRank = *in.SortRank
	}
	if in.Metadata != nil {
		b.Metadata = in.Metadata
	}

	if err := s.store.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}
	return b, nil
}

// SetStatus sets the stored status directly. Marking sold_out is a pure
// status set, independent of capacity math: an owner can sell out a block
// that still has remaining units to pause sales.
func (s *Service) SetStatus(ctx context.Context, actorID, blockID uuid.UUID, status models.BlockStatus) (*models.AvailabilityBlock, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	b, err := s.ownedBlock(ctx, actorID, blockID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, b.ID, status); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	b.Status = status
	return b, nil
}

// Delete removes an owned block.
func (s *Service) Delete(ctx context.Context, actorID, blockID uuid.UUID) error {
	b, err := s.ownedBlock(ctx, actorID, blockID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, b.ID); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// Claim consumes one unit of capacity from a block on behalf of a visitor.
// The decrement happens as one conditional statement in the store; when it
// matches no row the block either does not exist or is not consumable, and
// the two cases are told apart with a follow-up read so callers get a
// conflict rather than a server error for a sold-out block.
func (s *Service) Claim(ctx context.Context, blockID uuid.UUID) (*models.AvailabilityBlock, error) {
	b, err := s.store.Consume(ctx, blockID)
	if err == nil {
		s.recordClaim(ctx, b)
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume block: %w", err)
	}
	if _, getErr := s.store.GetByID(ctx, blockID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("load block: %w", getErr)
	}
	return nil, ErrUnavailable
}

// ListForTag returns the partitioned listing for a tag. Owner views include
// every status and visibility; the public view is filtered to effectively
// live, publicly visible blocks first.
func (s *Service) ListForTag(ctx context.Context, tagID uuid.UUID, ownerView bool, now time.Time) (Listing, error) {
	blocks, err := s.store.ListByTag(ctx, tagID)
	if err != nil {
		return Listing{}, fmt.Errorf("list blocks: %w", err)
	}
	if !ownerView {
		blocks = PublicView(blocks, now)
	}
	return Partition(blocks, now), nil
}

func (s *Service) ownedBlock(ctx context.Context, actorID, blockID uuid.UUID) (*models.AvailabilityBlock, error) {
	b, err := s.store.GetByID(ctx, blockID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("load block: %w", err)
	}

	// Ownership follows the tag's current owner, not the snapshot on the block.
	tag, err := s.tags.GetByID(ctx, b.TagID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("load tag: %w", err)
	}
	if tag.OwnerID != actorID {
		return nil, ErrNotOwner
	}
	return b, nil
}

func (s *Service) recordClaim(ctx context.Context, b *models.AvailabilityBlock) {
	if s.events == nil {
		return
	}
	tagID, ownerID := b.TagID, b.OwnerID
	ev := &models.Event{
		Kind:    models.EventKindBlockClaimed,
		TagID:   &tagID,
		OwnerID: &ownerID,
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		s.logger.Warn("claim event not recorded", zap.Error(err), zap.String("block_id", b.ID.String()))
	}
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func defaultStatus(v models.BlockStatus) models.BlockStatus {
	if v == "" {
		return models.BlockStatusDraft
	}
	return v
}

func defaultAction(v models.BlockActionType) models.BlockActionType {
	if v == "" {
		return models.BlockActionBook
	}
	return v
}

func defaultVisibility(v models.BlockVisibility) models.BlockVisibility {
	if v == "" {
		return models.BlockVisibilityPublic
	}
	return v
}
