package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/pkg/models"
)

// StatusSink receives template review decisions pushed by Meta.
type StatusSink interface {
	TemplateStatus(ctx context.Context, templateName, status, reason string)
}

type Handler struct {
	Config *config.Config
	Status StatusSink
	logger *zap.Logger
}

func NewHandler(cfg *config.Config, status StatusSink, logger *zap.Logger) *Handler {
	return &Handler{
		Config: cfg,
		Status: status,
		logger: logger.Named("webhook"),
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && h.Config.VerifyToken != "" && token == h.Config.VerifyToken {
			h.logger.Info("webhook verified")
			c.String(http.StatusOK, challenge)
		} else {
			h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleEvent processes template status updates. Other fields are
// acknowledged and ignored so Meta does not retry them.
func (h *Handler) HandleEvent(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("bind webhook payload", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	for _, change := range payload.StatusChanges() {
		h.logger.Info("template status update",
			zap.String("template_name", change.TemplateName),
			zap.Int64("template_id", change.TemplateID),
			zap.String("status", change.Status),
			zap.String("reason", change.Reason),
		)
		if h.Status != nil {
			h.Status.TemplateStatus(c.Request.Context(), change.TemplateName, change.Status, change.Reason)
		}
	}

	c.Status(http.StatusOK)
}
