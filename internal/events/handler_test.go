package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omninet-app/backend/internal/models"
)

func TestApplyCorrelationTags(t *testing.T) {
	tagID := uuid.New()
	ownerID := uuid.New()
	bookingID := uuid.New()

	e := &models.Event{Kind: models.EventKindEmailOpened}
	applyCorrelationTags(e, []string{
		"type:acceptance",
		"tag:" + tagID.String(),
		"owner:" + ownerID.String(),
		"booking:" + bookingID.String(),
	})

	require.NotNil(t, e.TagID)
	assert.Equal(t, tagID, *e.TagID)
	require.NotNil(t, e.OwnerID)
	assert.Equal(t, ownerID, *e.OwnerID)
	require.NotNil(t, e.BookingID)
	assert.Equal(t, bookingID, *e.BookingID)
}

func TestApplyCorrelationTagsIgnoresMalformed(t *testing.T) {
	e := &models.Event{Kind: models.EventKindEmailBounced}
	applyCorrelationTags(e, []string{
		"tag:not-a-uuid",
		"nocolon",
		"booking:",
		"unknown:" + uuid.New().String(),
	})

	assert.Nil(t, e.TagID)
	assert.Nil(t, e.OwnerID)
	assert.Nil(t, e.BookingID)
}
