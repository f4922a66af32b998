package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event kinds. Page/referral events come from the public funnel endpoint;
// email_* events are reconstructed from the correlation tags the email
// provider echoes back on its delivery webhook.
const (
	EventKindPageVisit      = "page_visit"
	EventKindReferral       = "referral"
	EventKindBlockClaimed   = "block_claimed"
	EventKindEmailDelivered = "email_delivered"
	EventKindEmailOpened    = "email_opened"
	EventKindEmailClicked   = "email_clicked"
	EventKindEmailBounced   = "email_bounced"
)

// Event is one analytics/funnel record.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	TagID     *uuid.UUID      `json:"tag_id,omitempty"`
	OwnerID   *uuid.UUID      `json:"owner_id,omitempty"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty"`
	Referrer  *string         `json:"referrer,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
