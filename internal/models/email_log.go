package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types for booking notifications.
const (
	EmailTypeRequestConfirmation = "request_confirmation"
	EmailTypeOwnerNotification   = "owner_notification"
	EmailTypeAcceptance          = "acceptance"
	EmailTypeDecline             = "decline"
)

// EmailLog delivery statuses.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one logical outbound notification send, including the
// deduplication key handed to the provider and how many attempts it took.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"`
	TagID          *uuid.UUID `json:"tag_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	DedupKey       string     `json:"dedup_key"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
