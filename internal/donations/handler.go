package donations

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/middleware"
	"github.com/omninet-app/backend/internal/models"
	"github.com/omninet-app/backend/pkg/response"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const signatureHeader = "X-Webhook-Signature"

// TagStore resolves tags for ownership checks and webhook validation.
type TagStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
}

// Handler handles donation HTTP endpoints.
type Handler struct {
	repo          *Repository
	tags          TagStore
	webhookSecret string
	logger        *zap.Logger
}

// NewHandler creates a donations handler.
func NewHandler(repo *Repository, tags TagStore, webhookSecret string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, tags: tags, webhookSecret: webhookSecret, logger: logger}
}

// webhookEvent is the gateway's payment event payload.
type webhookEvent struct {
	PaymentID   string  `json:"payment_id"`
	TagID       string  `json:"tag_id"`
	AmountCents int     `json:"amount_cents"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	DonorName   *string `json:"donor_name"`
	Message     *string `json:"message"`
}

// Webhook handles POST /webhooks/payments. The gateway signs the raw body
// with HMAC-SHA256; unsigned or mis-signed requests are rejected before the
// body is even parsed.
func (h *Handler) Webhook(c *gin.Context) {
	if h.webhookSecret == "" {
		response.ServiceUnavailable(c, "payments not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		response.Unauthorized(c, "invalid signature")
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}
	tagID, err := uuid.Parse(ev.TagID)
	if err != nil || ev.PaymentID == "" || ev.AmountCents <= 0 {
		response.BadRequest(c, "invalid payload")
		return
	}
	switch ev.Status {
	case models.DonationStatusSucceeded, models.DonationStatusRefunded, models.DonationStatusFailed:
	default:
		response.BadRequest(c, "unknown status")
		return
	}
	if _, err := h.tags.GetByID(c.Request.Context(), tagID); err != nil {
		response.NotFound(c, "tag not found")
		return
	}

	d := &models.Donation{
		TagID:             tagID,
		AmountCents:       ev.AmountCents,
		Currency:          ev.Currency,
		DonorName:         ev.DonorName,
		Message:           ev.Message,
		ProviderPaymentID: ev.PaymentID,
		Status:            ev.Status,
	}
	if err := h.repo.Upsert(c.Request.Context(), d); err != nil {
		h.logger.Error("failed to record donation", zap.Error(err), zap.String("payment_id", ev.PaymentID))
		response.Internal(c, "failed to record donation")
		return
	}
	response.OK(c, gin.H{"received": true})
}

// ListByTag handles GET /tags/:id/donations. Owner only.
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
		response.Internal(c, "failed to load donations")
		return
	}
	total, err := h.repo.TotalForTag(c.Request.Context(), tagID)
	if err != nil {
		response.Internal(c, "failed to load donations")
		return
	}
	response.OK(c, gin.H{
		"donations":   list,
		"total_cents": total,
	})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
