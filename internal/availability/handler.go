package availability

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// Handler exposes the availability ledger over HTTP.
type Handler struct {
	service *Service
	tags    TagStore
	logger  *zap.Logger
}

func NewHandler(service *Service, tags TagStore, logger *zap.Logger) *Handler {
	return &Handler{service: service, tags: tags, logger: logger}
}

type blockRequest struct {
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	StartAt       *time.Time      `json:"start_at"`
	EndAt         *time.Time      `json:"end_at"`
	Timezone      string          `json:"timezone"`
	CapacityTotal *int            `json:"capacity_total"`
	Status        string          `json:"status"`
	ActionType    string          `json:"action_type"`
	PriceCents    *int            `json:"price_cents"`
	Currency      string          `json:"currency"`
	Visibility    string          `json:"visibility"`
	SortRank      int             `json:"sort_rank"`
	Metadata      json.RawMessage `json:"metadata"`
}

// Create handles POST /tags/:id/blocks.
func (h *Handler) Create(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	block, err := h.service.Create(c.Request.Context(), middleware.UserID(c), CreateInput{
		TagID:         tagID,
		Title:         req.Title,
		Description:   req.Description,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Timezone:      req.Timezone,
		CapacityTotal: req.CapacityTotal,
		Status:        models.BlockStatus(req.Status),
		ActionType:    models.BlockActionType(req.ActionType),
		PriceCents:    req.PriceCents,
		Currency:      req.Currency,
		Visibility:    models.BlockVisibility(req.Visibility),
		SortRank:      req.SortRank,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, block)
}

// List handles GET /tags/:id/blocks. Public callers see the filtered
// partitioned listing; the tag owner sees everything.
func (h *Handler) List(c *gin.Context) {
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

	ownerView := middleware.UserID(c) == tag.OwnerID
	listing, err := h.service.ListForTag(c.Request.Context(), tagID, ownerView, time.Now().UTC())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, listing)
}

// Update handles PATCH /blocks/:id.
func (h *Handler) Update(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid block id")
		return
	}

	var req struct {
		Title         *string         `json:"title"`
		Description   *string         `json:"description"`
		StartAt       *time.Time      `json:"start_at"`
		EndAt         *time.Time      `json:"end_at"`
		ClearWindow   bool            `json:"clear_window"`
		Timezone      *string         `json:"timezone"`
		CapacityTotal *int            `json:"capacity_total"`
		ClearCapacity bool            `json:"clear_capacity"`
		PriceCents    *int            `json:"price_cents"`
		Visibility    *string         `json:"visibility"`
		SortRank      *int            `json:"sort_rank"`
		Metadata      json.RawMessage `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	in := UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		ClearWindow:   req.ClearWindow,
		Timezone:      req.Timezone,
		CapacityTotal: req.CapacityTotal,
		ClearCapacity: req.ClearCapacity,
		PriceCents:    req.PriceCents,
		SortRank:      req.SortRank,
		Metadata:      req.Metadata,
	}
	if req.Visibility != nil {
		v := models.BlockVisibility(*req.Visibility)
		in.Visibility = &v
	}

	block, err := h.service.Update(c.Request.Context(), middleware.UserID(c), blockID, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, block)
}

// SetStatus handles PATCH /blocks/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid block id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	block, err := h.service.SetStatus(c.Request.Context(), middleware.UserID(c), blockID, models.BlockStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, block)
}

// Duplicate handles POST /blocks/:id/duplicate.
func (h *Handler) Duplicate(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid block id")
		return
	}

	block, err := h.service.Duplicate(c.Request.Context(), middleware.UserID(c), blockID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, block)
}

// Delete handles DELETE /blocks/:id.
func (h *Handler) Delete(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid block id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.UserID(c), blockID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "block deleted"})
}

// Claim handles POST /blocks/:id/claim (public).
func (h *Handler) Claim(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid block id")
		return
	}

	block, err := h.service.Claim(c.Request.Context(), blockID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, block)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, ErrBlockNotFound), errors.Is(err, ErrTagNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(c, "not authorized")
	case errors.Is(err, ErrUnavailable):
		response.Conflict(c, "block is no longer available")
	default:
		h.logger.Error("availability request failed", zap.Error(err))
		response.ServiceUnavailable(c, "temporary failure, please retry")
	}
}
