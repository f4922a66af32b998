package models

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a published listing/service page owned by a user, reachable via a
// shareable link or QR code.
type Tag struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	BookingsEnabled bool      `json:"bookings_enabled"`
	ContactEmail    *string   `json:"contact_email,omitempty"`
	Hidden          bool      `json:"hidden"`
	ImageKey        *string   `json:"image_key,omitempty"`
	QRKey           *string   `json:"qr_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
