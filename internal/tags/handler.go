package tags

import (
	"bytes"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
	"github.com/omninet-app/backend/pkg/storage"
)

// CreateRequest is the body for POST /tags.
type CreateRequest struct {
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	BookingsEnabled bool    `json:"bookings_enabled"`
	ContactEmail    *string `json:"contact_email" binding:"omitempty,email"`
	Hidden          bool    `json:"hidden"`
}

// UpdateRequest is the body for PATCH /tags/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	BookingsEnabled *bool   `json:"bookings_enabled"`
	ContactEmail    *string `json:"contact_email" binding:"omitempty,email"`
	Hidden          *bool   `json:"hidden"`
}

// Handler handles tag HTTP endpoints.
type Handler struct {
	repo    *Repository
	s3      *storage.S3
	baseURL string
	logger  *zap.Logger
}

// NewHandler creates a tags handler. s3 may be nil (QR/image features disabled).
func NewHandler(repo *Repository, s3 *storage.S3, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, baseURL: baseURL, logger: logger}
}

// PageURL returns the public page URL for a tag.
func (h *Handler) PageURL(t *models.Tag) string {
	return h.baseURL + "/t/" + t.Slug
}

// Create handles POST /tags.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ownerID := middleware.UserID(c)
	tag := &models.Tag{
		OwnerID:         ownerID,
		Slug:            Slugify(req.Name),
		Name:            req.Name,
		Description:     req.Description,
		BookingsEnabled: req.BookingsEnabled,
		ContactEmail:    req.ContactEmail,
		Hidden:          req.Hidden,
	}
	if err := h.repo.Create(c.Request.Context(), tag); err != nil {
		h.logger.Error("create tag failed", zap.Error(err))
		response.Internal(c, "failed to create tag")
		return
	}

	// QR generation is best effort; the tag is usable without it.
	if h.s3 != nil {
		if err := h.generateQR(c, tag); err != nil {
			h.logger.Warn("qr generation failed", zap.Error(err), zap.String("tag_id", tag.ID.String()))
		}
	}

	response.Created(c, tag)
}

func (h *Handler) generateQR(c *gin.Context, tag *models.Tag) error {
	png, err := qrcode.Encode(h.PageURL(tag), qrcode.Medium, 512)
	if err != nil {
		return err
	}
	key := storage.TagQRKey(tag.ID.String())
	if _, err := h.s3.Upload(c.Request.Context(), key, "image/png", bytes.NewReader(png), int64(len(png)), true); err != nil {
		return err
	}
	if err := h.repo.SetQRKey(c.Request.Context(), tag.ID, key); err != nil {
		return err
	}
	tag.QRKey = &key
	return nil
}

// List handles GET /tags: the public directory of non-hidden tags.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListPublic(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list tags")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /my/tags.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListByOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to list tags")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /tags/:id. Hidden tags are visible to their owner only.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}
	tag, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "tag not found")
		return
	}
	if tag.Hidden && middleware.UserID(c) != tag.OwnerID {
		response.NotFound(c, "tag not found")
		return
	}
	response.OK(c, tag)
}

// GetBySlug handles GET /t/:slug — the public tag page data.
func (h *Handler) GetBySlug(c *gin.Context) {
	tag, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || tag.Hidden {
		response.NotFound(c, "tag not found")
		return
	}
	response.OK(c, tag)
}

// Update handles PATCH /tags/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	tag, ok := h.ownedTag(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		tag.Name = *req.Name
	}
	if req.Description != nil {
		tag.Description = *req.Description
	}
	if req.BookingsEnabled != nil {
		tag.BookingsEnabled = *req.BookingsEnabled
	}
	if req.ContactEmail != nil {
		tag.ContactEmail = req.ContactEmail
	}
	if req.Hidden != nil {
		tag.Hidden = *req.Hidden
	}
	if err := h.repo.Update(c.Request.Context(), tag); err != nil {
		h.logger.Error("update tag failed", zap.Error(err), zap.String("tag_id", tag.ID.String()))
		response.Internal(c, "failed to update tag")
		return
	}
	response.OK(c, tag)
}

// Delete handles DELETE /tags/:id (owner only).
func (h *Handler) Delete(c *gin.Context) {
	tag, ok := h.ownedTag(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), tag.ID); err != nil {
		response.Internal(c, "failed to delete tag")
		return
	}
	response.NoContent(c)
}

// UploadImage handles POST /tags/:id/image (owner only, multipart form "file").
func (h *Handler) UploadImage(c *gin.Context) {
	tag, ok := h.ownedTag(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	if file.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer src.Close()

	key := storage.TagImageKey(tag.ID.String(), file.Filename)
	url, err := h.s3.Upload(c.Request.Context(), key, contentType, src, file.Size, true)
	if err != nil {
		h.logger.Error("image upload failed", zap.Error(err), zap.String("tag_id", tag.ID.String()))
		response.Internal(c, "failed to upload image")
		return
	}
	if err := h.repo.SetImageKey(c.Request.Context(), tag.ID, key); err != nil {
		response.Internal(c, "failed to save image")
		return
	}
	response.OK(c, gin.H{"image_key": key, "url": url})
}

// ownedTag loads the tag in :id and verifies the authenticated user owns it.
// Writes the error response itself when it returns ok=false.
func (h *Handler) ownedTag(c *gin.Context) (*models.Tag, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return nil, false
	}
	tag, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "tag not found")
		} else {
			response.Internal(c, "failed to load tag")
		}
		return nil, false
	}
	if tag.OwnerID != middleware.UserID(c) {
		response.Forbidden(c, "not the tag owner")
		return nil, false
	}
	return tag, true
}
