package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/logging"
	"whatsapp-template-studio/internal/webhook"
	"whatsapp-template-studio/internal/wizard"
	"whatsapp-template-studio/internal/ws"
)

// Deps are the services the router exposes. Hub and Webhook may be nil.
type Deps struct {
	Registry *wizard.Registry
	Records  *database.Records
	Hub      *ws.Hub
	Webhook  *webhook.Handler
	Logger   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(d.Logger), CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Hub != nil {
		r.GET("/ws", gin.WrapF(d.Hub.ServeWs))
	}

	// Webhook Routes
	if d.Webhook != nil {
		r.GET("/webhook", d.Webhook.VerifyWebhook)
		r.POST("/webhook", d.Webhook.HandleEvent)
	}

	apiGroup := r.Group("/api")
	{
		NewWizardHandler(d.Registry, d.Logger).Register(apiGroup.Group("/wizards"))

		submissions := NewSubmissionHandler(d.Records)
		apiGroup.GET("/submissions", submissions.ListSubmissions)
		apiGroup.GET("/submissions/:name", submissions.GetSubmission)
	}

	return r
}
