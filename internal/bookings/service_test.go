package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omninet-app/backend/internal/models"
)

type fakeBookingStore struct {
	bookings  map[uuid.UUID]*models.Booking
	createErr error
	updateErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (f *fakeBookingStore) Create(_ context.Context, b *models.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.BookingStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	b.Status = status
	return nil
}

type fakeTagStore struct {
	tags map[uuid.UUID]*models.Tag
}

func (f *fakeTagStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type recordingSink struct {
	created []uuid.UUID
	changed []uuid.UUID
	err     error
}

func (r *recordingSink) BookingCreated(_ context.Context, b *models.Booking) error {
	r.created = append(r.created, b.ID)
	return r.err
}

func (r *recordingSink) BookingStatusChanged(_ context.Context, b *models.Booking) error {
	r.changed = append(r.changed, b.ID)
	return r.err
}

func newFixture() (svc *Service, store *fakeBookingStore, sink *recordingSink, tag *models.Tag) {
	store = newFakeBookingStore()
	tag = &models.Tag{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		Slug:            "studio-abc12345",
		Name:            "Studio",
		BookingsEnabled: true,
	}
	tags := &fakeTagStore{tags: map[uuid.UUID]*models.Tag{tag.ID: tag}}
	sink = &recordingSink{}
	svc = NewService(store, tags, sink, nil)
	return svc, store, sink, tag
}

func validSubmit(tagID uuid.UUID) SubmitInput {
	return SubmitInput{
		TagID:          tagID,
		RequesterName:  "Ada Visitor",
		RequesterEmail: "ada@example.com",
		PreferredAt:    time.Date(2026, 9, 12, 14, 30, 0, 0, time.UTC),
	}
}

func TestSubmitCreatesPendingBooking(t *testing.T) {
	svc, store, sink, tag := newFixture()

	preferred := time.Date(2026, 9, 12, 14, 30, 0, 0, time.UTC)
	in := validSubmit(tag.ID)
	in.PreferredAt = preferred

	b, err := svc.Submit(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, tag.ID, b.TagID)

	stored, err := store.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.PreferredAt.Equal(preferred), "preferred time must round-trip without drift")
	assert.Equal(t, []uuid.UUID{b.ID}, sink.created)
}

func TestSubmitRejectedWhenBookingsDisabled(t *testing.T) {
	svc, store, sink, tag := newFixture()
	tag.BookingsEnabled = false

	_, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	assert.ErrorIs(t, err, ErrBookingsDisabled)
	assert.Empty(t, store.bookings, "no row may be written for a disabled tag")
	assert.Empty(t, sink.created)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _, tag := newFixture()

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
	}{
		{"empty name", func(in *SubmitInput) { in.RequesterName = "  " }},
		{"bad email", func(in *SubmitInput) { in.RequesterEmail = "not-an-email" }},
		{"zero preferred_at", func(in *SubmitInput) { in.PreferredAt = time.Time{} }},
		{"oversized message", func(in *SubmitInput) {
			long := make([]byte, MaxMessageLength+1)
			for i := range long {
				long[i] = 'x'
			}
			s := string(long)
			in.Message = &s
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSubmit(tag.ID)
			tc.mutate(&in)
			_, err := svc.Submit(context.Background(), in)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestSubmitNotificationFailureDoesNotFailSubmission(t *testing.T) {
	svc, _, sink, tag := newFixture()
	sink.err = errors.New("queue down")

	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
}

func TestTransitionAcceptsPendingBooking(t *testing.T) {
	svc, store, sink, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	got, changed, err := svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusAccepted, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.BookingStatusAccepted, got.Status)

	stored, _ := store.GetByID(context.Background(), b.ID)
	assert.Equal(t, models.BookingStatusAccepted, stored.Status)
	assert.Equal(t, []uuid.UUID{b.ID}, sink.changed)
}

func TestTransitionIdempotentNoOp(t *testing.T) {
	svc, _, sink, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	_, changed, err := svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusAccepted, nil)
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, sink.changed, 1)

	got, changed, err := svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusAccepted, nil)
	require.NoError(t, err)
	assert.False(t, changed, "repeat transition to the same status is a no-op")
	assert.Equal(t, models.BookingStatusAccepted, got.Status)
	assert.Len(t, sink.changed, 1, "no-op must not emit another notification")
}

func TestTransitionRejectsNonOwner(t *testing.T) {
	svc, store, _, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	_, _, err = svc.Transition(context.Background(), uuid.New(), b.ID, models.BookingStatusDeclined, nil)
	assert.ErrorIs(t, err, ErrNotOwner)

	stored, _ := store.GetByID(context.Background(), b.ID)
	assert.Equal(t, models.BookingStatusPending, stored.Status, "status must be unchanged after rejection")
}

func TestTransitionTagMismatch(t *testing.T) {
	svc, _, _, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	otherTag := uuid.New()
	_, _, err = svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusAccepted, &otherTag)
	assert.ErrorIs(t, err, ErrTagMismatch)
	assert.NotErrorIs(t, err, ErrNotOwner, "mismatch is distinct from unauthorized")
}

func TestTransitionInvalidTarget(t *testing.T) {
	svc, _, _, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	_, _, err = svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestTransitionOutOfTerminalStateRejected(t *testing.T) {
	svc, _, _, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	_, _, err = svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusAccepted, nil)
	require.NoError(t, err)

	_, _, err = svc.Transition(context.Background(), tag.OwnerID, b.ID, models.BookingStatusDeclined, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionHonorsCurrentOwnerAfterOwnershipChange(t *testing.T) {
	svc, _, _, tag := newFixture()
	b, err := svc.Submit(context.Background(), validSubmit(tag.ID))
	require.NoError(t, err)

	oldOwner := tag.OwnerID
	newOwner := uuid.New()
	tag.OwnerID = newOwner

	_, _, err = svc.Transition(context.Background(), oldOwner, b.ID, models.BookingStatusAccepted, nil)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, changed, err := svc.Transition(context.Background(), newOwner, b.ID, models.BookingStatusAccepted, nil)
	require.NoError(t, err)
	assert.True(t, changed)
}
