package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// TagStore resolves tag ownership for access checks.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo *Repository
	tags TagStore
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, tags TagStore) *Handler {
	return &Handler{repo: repo, tags: tags}
}

// ListByTag handles GET /tags/:id/emails. Only the tag owner may see the
// notification history for their bookings.
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
	logs, err := h.repo.ListByTag(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
