package notifications

import (
	"context"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/mailer"
)

type scriptedSender struct {
	// errs are returned in order; once exhausted, sends succeed.
	errs []error
	sent []mailer.Message
}

func (s *scriptedSender) Send(_ context.Context, msg mailer.Message) error {
	s.sent = append(s.sent, msg)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

type fakeBookings struct{ booking *models.Booking }

func (f *fakeBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	if f.booking == nil || f.booking.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *f.booking
	return &cp, nil
}

type fakeTags struct{ tag *models.Tag }

func (f *fakeTags) GetByID(_ context.Context, id uuid.UUID) (*models.Tag, error) {
	if f.tag == nil || f.tag.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *f.tag
	return &cp, nil
}

type fakeUsers struct{ user *models.User }

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *f.user
	return &cp, nil
}

type memEmailLogs struct {
	entries map[uuid.UUID]*models.EmailLog
	order   []uuid.UUID
}

func newMemEmailLogs() *memEmailLogs {
	return &memEmailLogs{entries: make(map[uuid.UUID]*models.EmailLog)}
}

func (m *memEmailLogs) Create(_ context.Context, el *models.EmailLog) error {
	el.ID = uuid.New()
	el.CreatedAt = time.Now().UTC()
	cp := *el
	m.entries[el.ID] = &cp
	m.order = append(m.order, el.ID)
	return nil
}

func (m *memEmailLogs) MarkSent(_ context.Context, id uuid.UUID, attempts int) error {
	e := m.entries[id]
	e.Status = models.EmailLogStatusSent
	e.Attempts = attempts
	now := time.Now().UTC()
	e.SentAt = &now
	return nil
}

func (m *memEmailLogs) MarkFailed(_ context.Context, id uuid.UUID, attempts int, errMsg string) error {
	e := m.entries[id]
	e.Status = models.EmailLogStatusFailed
	e.Attempts = attempts
	e.ErrorMessage = errMsg
	return nil
}

func (m *memEmailLogs) ordered() []*models.EmailLog {
	out := make([]*models.EmailLog, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id])
	}
	return out
}

type fixture struct {
	dispatcher *Dispatcher
	sender     *scriptedSender
	logs       *memEmailLogs
	booking    *models.Booking
	tag        *models.Tag
	owner      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	owner := &models.User{ID: uuid.New(), Email: "owner@example.com"}
	tag := &models.Tag{ID: uuid.New(), OwnerID: owner.ID, Slug: "garden-studio-a1b2c3d4", Name: "Garden Studio"}
	msg := "looking forward to it"
	booking := &models.Booking{
		ID:             uuid.New(),
		TagID:          tag.ID,
		RequesterName:  "Dana",
		RequesterEmail: "dana@example.com",
		PreferredAt:    time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Message:        &msg,
		Status:         models.BookingStatusPending,
	}

	sender := &scriptedSender{}
	logs := newMemEmailLogs()
	d := NewDispatcher(sender, &fakeBookings{booking: booking}, &fakeTags{tag: tag}, &fakeUsers{user: owner}, logs, "https://omninet.app", zap.NewNop())
	d.backoff = 0
	return &fixture{dispatcher: d, sender: sender, logs: logs, booking: booking, tag: tag, owner: owner}
}

func TestDispatchBookingCreatedSendsBothEmails(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.DispatchBookingCreated(context.Background(), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)

	confirm, owner := f.sender.sent[0], f.sender.sent[1]
	assert.Equal(t, "dana@example.com", confirm.To)
	assert.Equal(t, "request_confirmation:"+f.booking.ID.String(), confirm.DedupKey)

	assert.Equal(t, "owner@example.com", owner.To)
	assert.Equal(t, "dana@example.com", owner.ReplyTo)
	assert.Contains(t, owner.HTML, "action=accept")
	assert.Contains(t, owner.HTML, "action=decline")
	assert.Contains(t, owner.Tags, "type:owner_notification")
	assert.Contains(t, owner.Tags, "tag:"+f.tag.ID.String())
	assert.Contains(t, owner.Tags, "owner:"+f.owner.ID.String())
	assert.Contains(t, owner.Tags, "booking:"+f.booking.ID.String())

	for _, e := range f.logs.ordered() {
		assert.Equal(t, models.EmailLogStatusSent, e.Status)
		assert.Equal(t, 1, e.Attempts)
	}
}

// The emailed Accept/Decline links must land on the deep-link action route
// the server registers, so they are resolved against a router carrying that
// exact pattern.
func TestOwnerEmailActionLinksResolveAgainstActionRoute(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.dispatcher.DispatchBookingCreated(context.Background(), f.booking.ID))
	require.Len(t, f.sender.sent, 2)
	ownerHTML := f.sender.sent[1].HTML

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/tags/:id/bookings/action", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, action := range []string{"accept", "decline"} {
		link := f.dispatcher.actionURL(f.booking, action)
		assert.Contains(t, ownerHTML, html.EscapeString(link))

		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, f.booking.ID.String(), u.Query().Get("booking"))
		assert.Equal(t, action, u.Query().Get("action"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.Path+"?"+u.RawQuery, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, "link %s must match the registered route", link)
	}
}

func TestOwnerNotificationPrefersTagContactEmail(t *testing.T) {
	f := newFixture(t)
	contact := "bookings@garden.example"
	f.tag.ContactEmail = &contact

	err := f.dispatcher.DispatchBookingCreated(context.Background(), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, contact, f.sender.sent[1].To)
}

func TestRetryableFailureRetriesUnderSameDedupKey(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusDeclined
	f.sender.errs = []error{
		&mailer.StatusError{Code: 500},
		&mailer.StatusError{Code: 429},
	}

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 3)

	key := "decline:" + f.booking.ID.String()
	for _, m := range f.sender.sent {
		assert.Equal(t, key, m.DedupKey)
	}

	entries := f.logs.ordered()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EmailLogStatusSent, entries[0].Status)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestRetriesExhaustedMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusDeclined
	f.sender.errs = []error{
		&mailer.StatusError{Code: 500},
		&mailer.StatusError{Code: 502},
		&mailer.StatusError{Code: 503},
	}

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.Error(t, err)
	assert.Len(t, f.sender.sent, 3)

	entries := f.logs.ordered()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EmailLogStatusFailed, entries[0].Status)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestCancellationMidBackoffKeepsProviderError(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusDeclined
	f.dispatcher.backoff = time.Hour
	f.sender.errs = []error{&mailer.StatusError{Code: 503, Body: "overloaded"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.dispatcher.DispatchStatusChanged(ctx, f.booking.ID)
	require.Error(t, err)
	assert.Len(t, f.sender.sent, 1)

	entries := f.logs.ordered()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EmailLogStatusFailed, entries[0].Status)
	assert.Equal(t, 1, entries[0].Attempts)
	// The log keeps the provider status that caused the retry, not just
	// the cancellation.
	assert.Contains(t, entries[0].ErrorMessage, "email provider status 503")
	assert.Contains(t, entries[0].ErrorMessage, context.Canceled.Error())
}

func TestNonRetryableFailureDoesNotRetry(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusDeclined
	f.sender.errs = []error{&mailer.StatusError{Code: 422}}

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.Error(t, err)
	assert.Len(t, f.sender.sent, 1)

	entries := f.logs.ordered()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EmailLogStatusFailed, entries[0].Status)
	assert.Equal(t, 1, entries[0].Attempts)
}

func TestAcceptanceCarriesCalendarAttachment(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusAccepted

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 1)

	msg := f.sender.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "booking.ics", msg.Attachments[0].Filename)
	assert.Equal(t, "text/calendar", msg.Attachments[0].ContentType)
	assert.Equal(t, "acceptance:"+f.booking.ID.String(), msg.DedupKey)
}

func TestAcceptanceFallsBackWithoutAttachment(t *testing.T) {
	f := newFixture(t)
	f.booking.Status = models.BookingStatusAccepted
	// Terminal 4xx on the attachment send; the plain retry succeeds.
	f.sender.errs = []error{&mailer.StatusError{Code: 413}}

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)

	withAttach, plain := f.sender.sent[0], f.sender.sent[1]
	assert.Len(t, withAttach.Attachments, 1)
	assert.Empty(t, plain.Attachments)
	assert.Equal(t, "acceptance:"+f.booking.ID.String(), withAttach.DedupKey)
	assert.Equal(t, "acceptance-noattach:"+f.booking.ID.String(), plain.DedupKey)
}

func TestPendingStatusSendsNothing(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.DispatchStatusChanged(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Empty(t, f.sender.sent)
}
