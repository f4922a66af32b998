package notifications

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/mailer"
)

// Retry policy for provider sends. Only errors the mailer classifies as
// retryable (429, 5xx, transport failures) are retried; 4xx responses are
// terminal on the first attempt.
const (
	maxSendAttempts  = 3
	baseRetryBackoff = 2 * time.Second
)

var errNoRecipient = errors.New("no recipient email could be resolved")

// Sender delivers one message to the email provider.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// BookingStore loads bookings referenced by queue jobs.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// TagStore loads the tag a booking belongs to.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// UserStore resolves an owner's account email when a tag has no contact
// address of its own.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EmailLogStore records each logical send and its outcome.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, attempts int) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error
}

// Dispatcher turns booking lifecycle events into transactional email.
type Dispatcher struct {
	sender   Sender
	bookings BookingStore
	tags     TagStore
	users    UserStore
	logs     EmailLogStore
	baseURL  string
	logger   *zap.Logger

	// backoff is the linear retry increment; tests zero it out.
	backoff time.Duration
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. baseURL is the public app origin used
// for listing links and owner deep links.
func NewDispatcher(sender Sender, bookings BookingStore, tags TagStore, users UserStore, logs EmailLogStore, baseURL string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender:   sender,
		bookings: bookings,
		tags:     tags,
		users:    users,
		logs:     logs,
		baseURL:  baseURL,
		logger:   logger,
		backoff:  baseRetryBackoff,
		now:      time.Now,
	}
}

// DispatchBookingCreated sends the requester confirmation and the owner's
// actionable notification for a newly created booking. The two sends are
// independent: a failure of one does not block the other, and the returned
// error joins whatever failed so the job is retried by the queue.
func (d *Dispatcher) DispatchBookingCreated(ctx context.Context, bookingID uuid.UUID) error {
	booking, tag, err := d.load(ctx, bookingID)
	if err != nil {
		return err
	}

	confirmErr := d.sendRequestConfirmation(ctx, booking, tag)
	ownerErr := d.sendOwnerNotification(ctx, booking, tag)
	return errors.Join(confirmErr, ownerErr)
}

// DispatchStatusChanged sends the outcome email for a booking that moved to
// a terminal state. Accepted bookings get a calendar attachment; declined
// ones a plain notice. Other statuses are a no-op.
func (d *Dispatcher) DispatchStatusChanged(ctx context.Context, bookingID uuid.UUID) error {
	booking, tag, err := d.load(ctx, bookingID)
	if err != nil {
		return err
	}

	switch booking.Status {
	case models.BookingStatusAccepted:
		return d.sendAcceptance(ctx, booking, tag)
	case models.BookingStatusDeclined:
		return d.sendDecline(ctx, booking, tag)
	default:
		d.logger.Debug("no email defined for status",
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", string(booking.Status)))
		return nil
	}
}

func (d *Dispatcher) load(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *models.Tag, error) {
	booking, err := d.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	tag, err := d.tags.GetByID(ctx, booking.TagID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tag %s: %w", booking.TagID, err)
	}
	return booking, tag, nil
}

func (d *Dispatcher) sendRequestConfirmation(ctx context.Context, booking *models.Booking, tag *models.Tag) error {
	msg := mailer.Message{
		To:       booking.RequesterEmail,
		Subject:  requestConfirmationSubject(tag),
		HTML:     requestConfirmationHTML(booking, tag, d.pageURL(tag)),
		Tags:     correlationTags(models.EmailTypeRequestConfirmation, booking, tag),
		DedupKey: dedupKey(models.EmailTypeRequestConfirmation, booking.ID),
	}
	return d.deliver(ctx, booking, tag, models.EmailTypeRequestConfirmation, msg)
}

func (d *Dispatcher) sendOwnerNotification(ctx context.Context, booking *models.Booking, tag *models.Tag) error {
	to, err := d.ownerEmail(ctx, tag)
	if err != nil {
		return err
	}
	msg := mailer.Message{
		To:      to,
		Subject: ownerNotificationSubject(booking, tag),
		HTML: ownerNotificationHTML(booking, tag,
			d.actionURL(booking, "accept"),
			d.actionURL(booking, "decline")),
		ReplyTo:  booking.RequesterEmail,
		Tags:     correlationTags(models.EmailTypeOwnerNotification, booking, tag),
		DedupKey: dedupKey(models.EmailTypeOwnerNotification, booking.ID),
	}
	return d.deliver(ctx, booking, tag, models.EmailTypeOwnerNotification, msg)
}

func (d *Dispatcher) sendAcceptance(ctx context.Context, booking *models.Booking, tag *models.Tag) error {
	msg := mailer.Message{
		To:       booking.RequesterEmail,
		Subject:  acceptanceSubject(tag),
		HTML:     acceptanceHTML(booking, tag, d.pageURL(tag)),
		Tags:     correlationTags(models.EmailTypeAcceptance, booking, tag),
		DedupKey: dedupKey(models.EmailTypeAcceptance, booking.ID),
	}

	ics := BuildICS(booking, tag, d.pageURL(tag), d.now())
	msg.Attachments = []mailer.Attachment{{
		Filename:    "booking.ics",
		Content:     base64.StdEncoding.EncodeToString([]byte(ics)),
		ContentType: "text/calendar",
	}}

	err := d.deliver(ctx, booking, tag, models.EmailTypeAcceptance, msg)
	if err == nil || mailer.IsRetryable(err) {
		return err
	}

	// A terminal rejection with the attachment present is most likely the
	// attachment itself being refused. Degrade to a plain acceptance under a
	// distinct dedup key so the provider does not swallow it as a duplicate.
	d.logger.Warn("acceptance with attachment rejected, retrying without",
		zap.String("booking_id", booking.ID.String()), zap.Error(err))
	msg.Attachments = nil
	msg.DedupKey = dedupKey(models.EmailTypeAcceptance+"-noattach", booking.ID)
	return d.deliver(ctx, booking, tag, models.EmailTypeAcceptance, msg)
}

func (d *Dispatcher) sendDecline(ctx context.Context, booking *models.Booking, tag *models.Tag) error {
	msg := mailer.Message{
		To:       booking.RequesterEmail,
		Subject:  declineSubject(tag),
		HTML:     declineHTML(booking, tag, d.pageURL(tag)),
		Tags:     correlationTags(models.EmailTypeDecline, booking, tag),
		DedupKey: dedupKey(models.EmailTypeDecline, booking.ID),
	}
	return d.deliver(ctx, booking, tag, models.EmailTypeDecline, msg)
}

// deliver logs the send, attempts it up to maxSendAttempts with linear
// backoff on retryable failures, and records the outcome.
func (d *Dispatcher) deliver(ctx context.Context, booking *models.Booking, tag *models.Tag, emailType string, msg mailer.Message) error {
	bookingID, tagID := booking.ID, tag.ID
	entry := &models.EmailLog{
		BookingID:      &bookingID,
		TagID:          &tagID,
		EmailType:      emailType,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		DedupKey:       msg.DedupKey,
		Status:         models.EmailLogStatusPending,
	}
	if err := d.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		attempts = attempt
		lastErr = d.sender.Send(ctx, msg)
		if lastErr == nil {
			if err := d.logs.MarkSent(ctx, entry.ID, attempt); err != nil {
				d.logger.Warn("email sent but log update failed", zap.Error(err))
			}
			return nil
		}
		if !mailer.IsRetryable(lastErr) {
			break
		}
		if attempt < maxSendAttempts {
			select {
			case <-ctx.Done():
				// Keep the provider error that triggered the retry alongside
				// the cancellation, so the log row stays diagnostic.
				lastErr = errors.Join(lastErr, ctx.Err())
				attempt = maxSendAttempts
			case <-time.After(time.Duration(attempt) * d.backoff):
			}
		}
	}

	if err := d.logs.MarkFailed(ctx, entry.ID, attempts, lastErr.Error()); err != nil {
		d.logger.Warn("email failed and log update failed", zap.Error(err))
	}
	return fmt.Errorf("send %s for booking %s: %w", emailType, booking.ID, lastErr)
}

// ownerEmail prefers the tag's contact address; only when the tag carries
// none is the owner's account looked up.
func (d *Dispatcher) ownerEmail(ctx context.Context, tag *models.Tag) (string, error) {
	if tag.ContactEmail != nil && *tag.ContactEmail != "" {
		return *tag.ContactEmail, nil
	}
	owner, err := d.users.GetByID(ctx, tag.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errNoRecipient
		}
		return "", fmt.Errorf("resolve owner %s: %w", tag.OwnerID, err)
	}
	if owner.Email == "" {
		return "", errNoRecipient
	}
	return owner.Email, nil
}

func (d *Dispatcher) pageURL(tag *models.Tag) string {
	return fmt.Sprintf("%s/t/%s", d.baseURL, tag.Slug)
}

func (d *Dispatcher) actionURL(booking *models.Booking, action string) string {
	return fmt.Sprintf("%s/tags/%s/bookings/action?booking=%s&action=%s",
		d.baseURL, booking.TagID, booking.ID, action)
}

func dedupKey(emailType string, bookingID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", emailType, bookingID)
}

// correlationTags are echoed back by the provider's delivery webhook and let
// engagement events be attributed to a tag, owner and booking.
func correlationTags(emailType string, booking *models.Booking, tag *models.Tag) []string {
	return []string{
		"type:" + emailType,
		"tag:" + tag.ID.String(),
		"owner:" + tag.OwnerID.String(),
		"booking:" + booking.ID.String(),
	}
}
