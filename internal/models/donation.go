package models

import (
	"time"

	"github.com/google/uuid"
)

// Donation statuses as reported by the payment gateway.
const (
	DonationStatusSucceeded = "succeeded"
	DonationStatusRefunded  = "refunded"
	DonationStatusFailed    = "failed"
)

// Donation is a payment recorded from the gateway webhook. The gateway is
// the source of truth; this service only mirrors completed events.
type Donation struct {
	ID                uuid.UUID `json:"id"`
	TagID             uuid.UUID `json:"tag_id"`
	AmountCents       int       `json:"amount_cents"`
	Currency          string    `json:"currency"`
	DonorName         *string   `json:"donor_name,omitempty"`
	Message           *string   `json:"message,omitempty"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}
