package feedback

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// MaxCommentLength bounds a public comment.
const MaxCommentLength = 1000

// TagStore checks the tag exists before accepting public feedback.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// Handler handles feedback HTTP endpoints.
type Handler struct {
	repo   *Repository
	tags   TagStore
	logger *zap.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(repo *Repository, tags TagStore, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, tags: tags, logger: logger}
}

// Create handles POST /tags/:id/feedback (public, no account required).
func (h *Handler) Create(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}

	var req struct {
		Rating     int     `json:"rating" binding:"required"`
		Comment    *string `json:"comment"`
		AuthorName *string `json:"author_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "rating is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		response.BadRequest(c, "rating must be between 1 and 5")
		return
	}
	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		if len(trimmed) > MaxCommentLength {
			response.BadRequest(c, "comment too long")
			return
		}
		if trimmed == "" {
			req.Comment = nil
		} else {
			req.Comment = &trimmed
		}
	}

	if _, err := h.tags.GetByID(c.Request.Context(), tagID); err != nil {
		response.NotFound(c, "tag not found")
		return
	}

	f := &models.Feedback{
		TagID:      tagID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		AuthorName: req.AuthorName,
	}
	if err := h.repo.Create(c.Request.Context(), f); err != nil {
		h.logger.Error("failed to create feedback", zap.Error(err))
		response.Internal(c, "failed to save feedback")
		return
	}
	response.Created(c, f)
}

// ListByTag handles GET /tags/:id/feedback (public). Returns entries plus
// the aggregate summary.
func (h *Handler) ListByTag(c *gin.Context) {
	tagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}

	list, err := h.repo.ListByTag(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to load feedback")
		return
	}
	count, average, err := h.repo.Summary(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to load feedback")
		return
	}
	response.OK(c, gin.H{
		"entries": list,
		"count":   count,
		"average": average,
	})
}
