package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/payments/stripe"
	"travelwild_backend/internal/services"
	"travelwild_backend/pkg/apperrors"
)

// maxWebhookBody - предел тела события шлюза.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	*BaseHandler
	webhookService services.WebhookService
}

func NewWebhookHandler(base *BaseHandler, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    base,
		webhookService: webhookService,
	}
}

// RegisterRoutes - без авторизации, подлинность проверяется подписью.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/stripe", h.HandleStripe)
}

func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	// подпись считается по сырому телу, поэтому без ShouldBind
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.CtxWithError(c.Request.Context(), "Failed to read webhook body", err)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid payload"))
		return
	}

	resp, err := h.webhookService.HandleStripeEvent(c.Request.Context(), h.GetDB(c), payload, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
