package http

import (
	"net/http"

	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TelegramHandler handles Telegram bot management endpoints
type TelegramHandler struct {
	tgManager *infrastructure.TelegramBotManager
	settings  interfaces.SettingsRepository
	log       zerolog.Logger
}

// NewTelegramHandler creates a new Telegram handler
func NewTelegramHandler(tgManager *infrastructure.TelegramBotManager, settings interfaces.SettingsRepository, log zerolog.Logger) *TelegramHandler {
	return &TelegramHandler{
		tgManager: tgManager,
		settings:  settings,
		log:       log,
	}
}

// RegisterRoutes registers Telegram management routes
func (h *TelegramHandler) RegisterRoutes(api *gin.RouterGroup) {
	tg := api.Group("/telegram")
	tg.Use(h.requireManager())
	{
		tg.GET("/status", h.GetStatus)
		tg.POST("/token", h.SaveToken)
		tg.POST("/connect", h.Connect)
		tg.POST("/disconnect", h.Disconnect)
	}
}

func (h *TelegramHandler) requireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.tgManager == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Telegram not enabled"})
			return
		}
		c.Next()
	}
}

// GetStatus returns the connection status of the tenant's Telegram bot
func (h *TelegramHandler) GetStatus(c *gin.Context) {
	tenantID := callerFrom(c).TenantID

	token, err := h.settings.GetSetting(c.Request.Context(), tenantID, entities.SettingTelegramToken)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	connected, botName := h.tgManager.GetStatus(tenantID)
	c.JSON(http.StatusOK, gin.H{
		"has_token": token != "",
		"connected": connected,
		"bot_name":  botName,
	})
}

// SaveToken validates and stores the tenant's bot token; an empty token clears it
func (h *TelegramHandler) SaveToken(c *gin.Context) {
	tenantID := callerFrom(c).TenantID
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if req.Token == "" {
		h.tgManager.DisconnectBot(tenantID)
		if err := h.settings.SetSetting(c.Request.Context(), tenantID, entities.SettingTelegramToken, ""); err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
		return
	}

	botName, err := h.tgManager.ValidateToken(req.Token)
	if err != nil {
		badRequest(c, "Invalid token: "+err.Error())
		return
	}
	if err := h.settings.SetSetting(c.Request.Context(), tenantID, entities.SettingTelegramToken, req.Token); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "saved",
		"bot_name": "@" + botName,
	})
}

// Connect starts the tenant's Telegram bot
func (h *TelegramHandler) Connect(c *gin.Context) {
	tenantID := callerFrom(c).TenantID

	instance, err := h.tgManager.ConnectTenant(c.Request.Context(), tenantID, entities.SettingTelegramToken)
	if err != nil {
		badRequest(c, "Failed to connect: "+err.Error())
		return
	}
	if err := h.settings.SetSetting(c.Request.Context(), tenantID, entities.SettingTelegramEnabled, "true"); err != nil {
		h.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("telegram autostart flag not saved")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "connected",
		"bot_name": "@" + instance.Bot.Self.UserName,
	})
}

// Disconnect stops the tenant's Telegram bot
func (h *TelegramHandler) Disconnect(c *gin.Context) {
	tenantID := callerFrom(c).TenantID
	h.tgManager.DisconnectBot(tenantID)
	if err := h.settings.SetSetting(c.Request.Context(), tenantID, entities.SettingTelegramEnabled, "false"); err != nil {
		h.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("telegram autostart flag not saved")
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
