package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// TagStore resolves tags for ownership checks.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// Handler handles analytics event HTTP endpoints.
type Handler struct {
	repo   *Repository
	tags   TagStore
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, tags TagStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, tags: tags, logger: logger}
}

// Track handles POST /events (public). Accepts page visit and referral
// funnel events fired from tag pages.
func (h *Handler) Track(c *gin.Context) {
	var req struct {
		Kind     string          `json:"kind" binding:"required"`
		TagID    string          `json:"tag_id" binding:"required"`
		Referrer *string         `json:"referrer"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "kind and tag_id are required")
		return
	}
	if req.Kind != models.EventKindPageVisit && req.Kind != models.EventKindReferral {
		response.BadRequest(c, "unsupported event kind")
		return
	}
	tagID, err := uuid.Parse(req.TagID)
	if err != nil {
		response.BadRequest(c, "invalid tag_id")
		return
	}
	tag, err := h.tags.GetByID(c.Request.Context(), tagID)
	if err != nil {
		response.NotFound(c, "tag not found")
		return
	}

	ownerID := tag.OwnerID
	e := &models.Event{
		Kind:     req.Kind,
		TagID:    &tagID,
		OwnerID:  &ownerID,
		Referrer: req.Referrer,
		Metadata: req.Metadata,
	}
	if err := h.repo.Insert(c.Request.Context(), e); err != nil {
		h.logger.Error("failed to record event", zap.Error(err))
		response.Internal(c, "failed to record event")
		return
	}
	response.Created(c, gin.H{"id": e.ID})
}

// Summary handles GET /tags/:id/analytics. Owner only.
func (h *Handler) Summary(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}
	tag, err := h.tags.GetByID(c.Request.Context(), tagID)
	if err != nil {
		response.NotFound(c, "tag not found")
		return
	}
	if tag.OwnerID != middleware.UserID(c) {
		response.Forbidden(c, "not authorized")
		return
	}

	counts, err := h.repo.CountsByKind(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to load analytics")
		return
	}
	referrers, err := h.repo.TopReferrers(c.Request.Context(), tagID, 10)
	if err != nil {
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, gin.H{
		"counts":    counts,
		"referrers": referrers,
	})
}

// emailWebhookEvent is the provider's delivery notification. The tags slice
// echoes back the correlation tags attached at send time.
type emailWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string   `json:"email_id"`
		Tags    []string `json:"tags"`
	} `json:"data"`
}

// emailEventKinds maps provider webhook types onto event kinds.
var emailEventKinds = map[string]string{
	"email.delivered": models.EventKindEmailDelivered,
	"email.opened":    models.EventKindEmailOpened,
	"email.clicked":   models.EventKindEmailClicked,
	"email.bounced":   models.EventKindEmailBounced,
}

// EmailWebhook handles POST /webhooks/email. Engagement events are
// attributed back to a tag, owner and booking by parsing the prefixed
// correlation tags the provider echoes. Unknown event types are accepted
// and dropped so the provider does not retry them.
func (h *Handler) EmailWebhook(c *gin.Context) {
	var ev emailWebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}

	kind, ok := emailEventKinds[ev.Type]
	if !ok {
		response.OK(c, gin.H{"received": true})
		return
	}

	e := &models.Event{Kind: kind}
	applyCorrelationTags(e, ev.Data.Tags)

	if meta, err := json.Marshal(gin.H{"email_id": ev.Data.EmailID, "provider_type": ev.Type}); err == nil {
		e.Metadata = meta
	}

	if err := h.repo.Insert(c.Request.Context(), e); err != nil {
		h.logger.Error("failed to record email event", zap.Error(err), zap.String("type", ev.Type))
		response.Internal(c, "failed to record event")
		return
	}
	response.OK(c, gin.H{"received": true})
}

// applyCorrelationTags fills the event's id fields from "name:value" tags.
// Unknown names and malformed ids are skipped.
func applyCorrelationTags(e *models.Event, tags []string) {
	for _, t := range tags {
		name, value, found := strings.Cut(t, ":")
		if !found {
			continue
		}
		switch name {
		case "tag":
			if id, err := uuid.Parse(value); err == nil {
				e.TagID = &id
			}
		case "owner":
			if id, err := uuid.Parse(value); err == nil {
				e.OwnerID = &id
			}
		case "booking":
			if id, err := uuid.Parse(value); err == nil {
				e.BookingID = &id
			}
		}
	}
}
