package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking request.
type BookingStatus string

// Booking statuses. Pending is initial; accepted and declined are the
// owner-driven terminal states. Cancelled is a valid terminal state but no
// code path in this service sets it (kept for administrative tooling).
const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusDeclined, BookingStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further owner action is defined out of s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusAccepted || s == BookingStatusDeclined || s == BookingStatusCancelled
}

// Booking is a visitor's request to engage with a tag's owner at a preferred
// time. The owner is resolved from the tag at transition time, never cached
// here, so ownership changes after creation are honored.
type Booking struct {
	ID             uuid.UUID     `json:"id"`
	TagID          uuid.UUID     `json:"tag_id"`
	RequesterName  string        `json:"requester_name"`
	RequesterEmail string        `json:"requester_email"`
	RequesterPhone *string       `json:"requester_phone,omitempty"`
	PreferredAt    time.Time     `json:"preferred_at"`
	Message        *string       `json:"message,omitempty"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
