package http

import (
	"net/http"
	"strings"
	"time"

	"liveassist/internal/infrastructure"
	"liveassist/internal/interfaces"
	"liveassist/internal/repository"
	"liveassist/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps is everything the HTTP surface is built from. Telegram and WhatsApp
// may be nil when the bridges are disabled.
type Deps struct {
	Lifecycle *usecases.LifecycleManager
	Claims    *usecases.ClaimCoordinator
	Messages  *usecases.MessageLog
	Queue     *usecases.QueueView
	Gateway   *usecases.SyncGateway
	Auth      *usecases.AuthUsecase
	Settings  interfaces.SettingsRepository

	Telegram *infrastructure.TelegramBotManager
	WhatsApp *infrastructure.WhatsAppManager

	Middleware    *Middleware
	AgentLimiter  *infrastructure.MessageRateLimiter
	PublicLimiter *infrastructure.MessageRateLimiter
	Log           zerolog.Logger
}

type Handler struct {
	lifecycle *usecases.LifecycleManager
	claims    *usecases.ClaimCoordinator
	messages  *usecases.MessageLog
	queue     *usecases.QueueView
	gateway   *usecases.SyncGateway
	log       zerolog.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		lifecycle: d.Lifecycle,
		claims:    d.Claims,
		messages:  d.Messages,
		queue:     d.Queue,
		gateway:   d.Gateway,
		log:       d.Log,
	}
}

func (h *Handler) pollInterval() time.Duration {
	return h.gateway.PollInterval()
}

func SetupRoutes(r *gin.Engine, d Deps) {
	h := NewHandler(d)
	public := NewPublicHandler(d.Gateway, d.Log)
	adminHandler := NewAdminHandler(d.Auth, d.Settings, d.Log)
	telegramHandler := NewTelegramHandler(d.Telegram, d.Settings, d.Log)
	whatsappHandler := NewWhatsAppHandler(d.WhatsApp, d.Log)
	middleware := d.Middleware

	r.Use(middleware.RequestLogger())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))
	r.Use(middleware.CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public Auth Routes
	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.RateLimitPerIP(d.PublicLimiter))
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Tenant   string `json:"tenant"`
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				badRequest(c, "Invalid request")
				return
			}
			tenantID := repository.SanitizeTenantID(loginReq.Tenant)
			token, err := d.Auth.Login(c.Request.Context(), tenantID, strings.TrimSpace(loginReq.Username), loginReq.Password)
			if err != nil {
				writeError(c, d.Log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	// Agent API
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(d.AgentLimiter))
	{
		api.GET("/requests", h.OpenRequests)
		api.GET("/requests/mine", h.MyRequests)
		api.GET("/requests/status/:status", h.RequestsByStatus)
		api.GET("/requests/pending/count", h.PendingCount)
		api.POST("/requests", h.CreateRequest)
		api.GET("/requests/:id", h.GetRequest)
		api.POST("/requests/:id/claim", h.Claim)
		api.POST("/requests/:id/assign", h.Reassign)
		api.POST("/requests/:id/resolve", h.Resolve)
		api.POST("/requests/:id/cancel", h.Cancel)
		api.POST("/requests/:id/reopen", h.Reopen)
		api.PATCH("/requests/:id/priority", h.ChangePriority)
		api.PATCH("/requests/:id/note", h.SetNote)
		api.GET("/requests/:id/messages", h.ListMessages)
		api.POST("/requests/:id/messages", h.AppendMessage)
	}

	// Supervisor-only Routes
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.SupervisorRequired())
	adminHandler.RegisterRoutes(admin)

	channels := r.Group("/api/channels")
	channels.Use(middleware.AuthRequired())
	channels.Use(middleware.SupervisorRequired())
	telegramHandler.RegisterRoutes(channels)
	whatsappHandler.RegisterRoutes(channels)

	// Customer widget / tracker
	pub := r.Group("/public/:tenant")
	pub.Use(middleware.RateLimitPerIP(d.PublicLimiter))
	public.RegisterRoutes(pub)
}
