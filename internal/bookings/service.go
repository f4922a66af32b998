package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
)

// MaxMessageLength bounds the free-text message on a booking request.
const MaxMessageLength = 2000

// Service errors, in order of the checks that raise them. Handlers map these
// to HTTP statuses; anything else from the store is a retryable failure.
var (
	ErrTagNotFound       = errors.New("tag not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingsDisabled  = errors.New("this tag is not accepting bookings")
	ErrNotOwner          = errors.New("acting user is not the tag owner")
	ErrTagMismatch       = errors.New("booking does not belong to the expected tag")
	ErrInvalidTarget     = errors.New("target status must be accepted or declined")
	ErrInvalidTransition = errors.New("booking is already finalized")
)

// ValidationError is a rejected-input error with a caller-facing reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BookingStore is the persistence the lifecycle manager needs.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error
}

// TagStore resolves tags; ownership is read at transition time, never cached.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// EventSink receives lifecycle events after a successful write. Sink failures
// are logged and swallowed: notification delivery is advisory, the booking
// write is the authority.
type EventSink interface {
	BookingCreated(ctx context.Context, b *models.Booking) error
	BookingStatusChanged(ctx context.Context, b *models.Booking) error
}

// Service owns the booking state machine: pending -> accepted | declined,
// with cancelled reachable only through external administrative action.
type Service struct {
	store  BookingStore
	tags   TagStore
	events EventSink
	logger *zap.Logger
}

// NewService creates a booking lifecycle service. events may be nil.
func NewService(store BookingStore, tags TagStore, events EventSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tags: tags, events: events, logger: logger}
}

// SubmitInput is a visitor's booking request.
type SubmitInput struct {
	TagID          uuid.UUID
	RequesterName  string
	RequesterEmail string
	RequesterPhone *string
	PreferredAt    time.Time
	Message        *string
}

func (in *SubmitInput) validate() error {
	if strings.TrimSpace(in.RequesterName) == "" {
		return &ValidationError{Field: "requester_name", Reason: "required"}
	}
	if _, err := mail.ParseAddress(in.RequesterEmail); err != nil {
		return &ValidationError{Field: "requester_email", Reason: "not a valid email address"}
	}
	if in.PreferredAt.IsZero() {
		return &ValidationError{Field: "preferred_at", Reason: "required"}
	}
	if in.Message != nil && len(*in.Message) > MaxMessageLength {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("longer than %d characters", MaxMessageLength)}
	}
	return nil
}

// Submit validates a booking request, verifies the target tag accepts
// bookings, and persists a pending booking. The created event is emitted
// fire-and-forget: a notification failure never fails the submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tag, err := s.tags.GetByID(ctx, in.TagID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("load tag: %w", err)
	}
	if !tag.BookingsEnabled {
		return nil, ErrBookingsDisabled
	}

	b := &models.Booking{
		TagID:          tag.ID,
		RequesterName:  strings.TrimSpace(in.RequesterName),
		RequesterEmail: in.RequesterEmail,
		RequesterPhone: in.RequesterPhone,
		PreferredAt:    in.PreferredAt,
		Message:        in.Message,
		Status:         models.BookingStatusPending,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.emit(ctx, b, func(sink EventSink) error { return sink.BookingCreated(ctx, b) }, "booking_created")
	return b, nil
}

// Transition moves a booking to accepted or declined on behalf of actorID.
// expectTagID, when non-nil, guards email deep links against cross-tag
// replay: the booking must belong to that tag or the call fails with
// ErrTagMismatch before any ownership check.
//
// The returned bool is false when the booking was already in the target
// status; that case is a no-op and emits no notification.
func (s *Service) Transition(ctx context.Context, actorID, bookingID uuid.UUID, target models.BookingStatus, expectTagID *uuid.UUID) (*models.Booking, bool, error) {
	if target != models.BookingStatusAccepted && target != models.BookingStatusDeclined {
		return nil, false, ErrInvalidTarget
	}

	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		if isNoRows(err) {
			return nil, false, ErrBookingNotFound
		}
		return nil, false, fmt.Errorf("load booking: %w", err)
	}
	if expectTagID != nil && *expectTagID != b.TagID {
		return nil, false, ErrTagMismatch
	}

	// Ownership is resolved now, against the tag's current owner.
	tag, err := s.tags.GetByID(ctx, b.TagID)
	if err != nil {
		if isNoRows(err) {
			return nil, false, ErrTagNotFound
		}
		return nil, false, fmt.Errorf("load tag: %w", err)
	}
	if tag.OwnerID != actorID {
		return nil, false, ErrNotOwner
	}

	if b.Status == target {
		return b, false, nil
	}
	if b.Status.Terminal() {
		return nil, false, ErrInvalidTransition
	}

	if err := s.store.UpdateStatus(ctx, b.ID, target); err != nil {
		return nil, false, fmt.Errorf("update status: %w", err)
	}
	b.Status = target

	s.emit(ctx, b, func(sink EventSink) error { return sink.BookingStatusChanged(ctx, b) }, "booking_status_changed")
	return b, true, nil
}

func (s *Service) emit(ctx context.Context, b *models.Booking, fn func(EventSink) error, event string) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.logger.Error("event emission failed",
			zap.String("event", event),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err))
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
