package bookings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/queue"
)

// OwnerBroadcaster pushes live events to a connected owner dashboard.
type OwnerBroadcaster interface {
	BroadcastToOwnerAndPublish(ownerID uuid.UUID, event string, payload interface{})
}

// Events routes booking lifecycle events to the notification job queue and,
// best effort, to the realtime owner feed. It is the production EventSink.
type Events struct {
	queue  *queue.Queue
	tags   TagStore
	hub    OwnerBroadcaster
	logger *zap.Logger
}

// NewEvents creates the production event sink. hub may be nil.
func NewEvents(q *queue.Queue, tags TagStore, hub OwnerBroadcaster, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{queue: q, tags: tags, hub: hub, logger: logger}
}

// BookingCreated enqueues the "created" notification job and notifies the
// owner's live feed.
func (e *Events) BookingCreated(ctx context.Context, b *models.Booking) error {
	err := e.queue.EnqueueBookingEvent(ctx, queue.JobTypeBookingCreated, queue.BookingEventPayload{
		BookingID: b.ID,
		TagID:     b.TagID,
	})
	e.broadcast(ctx, b, "booking_created")
	return err
}

// BookingStatusChanged enqueues the "status changed" notification job and
// notifies the owner's live feed.
func (e *Events) BookingStatusChanged(ctx context.Context, b *models.Booking) error {
	err := e.queue.EnqueueBookingEvent(ctx, queue.JobTypeBookingStatusChanged, queue.BookingEventPayload{
		BookingID: b.ID,
		TagID:     b.TagID,
		Status:    string(b.Status),
	})
	e.broadcast(ctx, b, "booking_updated")
	return err
}

func (e *Events) broadcast(ctx context.Context, b *models.Booking, event string) {
	if e.hub == nil {
		return
	}
	tag, err := e.tags.GetByID(ctx, b.TagID)
	if err != nil {
		e.logger.Debug("realtime broadcast skipped", zap.Error(err), zap.String("booking_id", b.ID.String()))
		return
	}
	e.hub.BroadcastToOwnerAndPublish(tag.OwnerID, event, b)
}
