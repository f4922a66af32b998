package bookings

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// preferredAtLayouts are the accepted shapes of the visitor-supplied
// preferred time, most specific first. The value is stored timezone-naive
// and returned exactly as submitted.
var preferredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// SubmitRequest is the body for POST /tags/:id/bookings.
type SubmitRequest struct {
	RequesterName  string  `json:"requester_name" binding:"required"`
	RequesterEmail string  `json:"requester_email" binding:"required,email"`
	RequesterPhone *string `json:"requester_phone"`
	PreferredAt    string  `json:"preferred_at" binding:"required"`
	Message        *string `json:"message"`
}

// TransitionRequest is the body for PATCH /bookings/:id.
type TransitionRequest struct {
	Status string     `json:"status" binding:"required"`
	TagID  *uuid.UUID `json:"tag_id"`
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	svc    *Service
	repo   *Repository
	tags   TagStore
	logger *zap.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(svc *Service, repo *Repository, tags TagStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, tags: tags, logger: logger}
}

// Submit handles POST /tags/:id/bookings (public).
func (h *Handler) Submit(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	preferredAt, err := parsePreferredAt(req.PreferredAt)
	if err != nil {
		response.BadRequest(c, "invalid preferred_at: expected an ISO-8601 timestamp")
		return
	}

	b, err := h.svc.Submit(c.Request.Context(), SubmitInput{
		TagID:          tagID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		PreferredAt:    preferredAt,
		Message:        req.Message,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{"booking_id": b.ID, "status": b.Status, "preferred_at": b.PreferredAt})
}

// GetByID handles GET /bookings/:id (owner of the booking's tag only).
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	b, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "booking not found")
		return
	}
	tag, err := h.tags.GetByID(c.Request.Context(), b.TagID)
	if err != nil || tag.OwnerID != middleware.UserID(c) {
		response.Forbidden(c, "not authorized")
		return
	}
	response.OK(c, b)
}

// ListByTag handles GET /tags/:id/bookings (tag owner only).
func (h *Handler) ListByTag(c *gin.Context) {
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
	list, err := h.repo.ListByTag(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to list bookings")
		return
	}
	response.OK(c, list)
}

// Transition handles PATCH /bookings/:id: the owner's direct accept/decline.
func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.transition(c, id, models.BookingStatus(req.Status), req.TagID)
}

// DeepLinkAction handles GET /tags/:id/bookings/action?booking=&action=.
// This is the email deep-link entry point: the link carries no privilege,
// the follower is re-authenticated and re-checked exactly like the direct
// action, and the tag in the path must match the booking's tag.
func (h *Handler) DeepLinkAction(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}
	bookingID, err := uuid.Parse(c.Query("booking"))
	if err != nil {
		response.BadRequest(c, "invalid booking parameter")
		return
	}
	var target models.BookingStatus
	switch c.Query("action") {
	case "accept":
		target = models.BookingStatusAccepted
	case "decline":
		target = models.BookingStatusDeclined
	default:
		response.BadRequest(c, "action must be accept or decline")
		return
	}
	h.transition(c, bookingID, target, &tagID)
}

func (h *Handler) transition(c *gin.Context, bookingID uuid.UUID, target models.BookingStatus, expectTag *uuid.UUID) {
	b, changed, err := h.svc.Transition(c.Request.Context(), middleware.UserID(c), bookingID, target, expectTag)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !changed {
		response.OK(c, gin.H{"booking_id": b.ID, "status": b.Status, "message": "already in that state"})
		return
	}
	response.OK(c, gin.H{"booking_id": b.ID, "status": b.Status})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		response.BadRequest(c, ve.Error())
	case errors.Is(err, ErrBookingsDisabled):
		response.Forbidden(c, ErrBookingsDisabled.Error())
	case errors.Is(err, ErrTagNotFound), errors.Is(err, ErrBookingNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(c, "not authorized")
	case errors.Is(err, ErrTagMismatch):
		response.Conflict(c, ErrTagMismatch.Error())
	case errors.Is(err, ErrInvalidTarget):
		response.BadRequest(c, ErrInvalidTarget.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(c, ErrInvalidTransition.Error())
	default:
		h.logger.Error("booking operation failed", zap.Error(err))
		response.ServiceUnavailable(c, "temporary failure, please retry")
	}
}

func parsePreferredAt(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range preferredAtLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
