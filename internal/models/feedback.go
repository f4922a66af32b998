package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a public rating left on a tag.
type Feedback struct {
	ID         uuid.UUID `json:"id"`
	TagID      uuid.UUID `json:"tag_id"`
	Rating     int       `json:"rating"` // 1..5
	Comment    *string   `json:"comment,omitempty"`
	AuthorName *string   `json:"author_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
