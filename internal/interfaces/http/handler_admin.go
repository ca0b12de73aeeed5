package http

import (
	"net/http"
	"strings"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"
	"liveassist/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// secretSettings are never echoed back by the settings listing.
var secretSettings = map[string]bool{
	entities.SettingTelegramToken: true,
}

type AdminHandler struct {
	auth     *usecases.AuthUsecase
	settings interfaces.SettingsRepository
	log      zerolog.Logger
}

func NewAdminHandler(auth *usecases.AuthUsecase, settings interfaces.SettingsRepository, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		auth:     auth,
		settings: settings,
		log:      log,
	}
}

func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/agents", h.ListAgents)
	admin.POST("/agents", h.CreateAgent)
	admin.PUT("/agents/:id/status", h.UpdateAgentStatus)
	admin.GET("/settings", h.ListSettings)
	admin.PUT("/settings", h.SetSetting)
}

// ListAgents returns the agents of the caller's tenant
func (h *AdminHandler) ListAgents(c *gin.Context) {
	agents, err := h.auth.ListAgents(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if agents == nil {
		agents = []entities.Agent{}
	}
	c.JSON(http.StatusOK, agents)
}

func (h *AdminHandler) CreateAgent(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	agent, err := h.auth.Register(c.Request.Context(), callerFrom(c), SanitizeString(payload.Username), payload.Password, strings.ToLower(payload.Role))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

// UpdateAgentStatus enables/disables an agent account
func (h *AdminHandler) UpdateAgentStatus(c *gin.Context) {
	var payload struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	caller := callerFrom(c)
	id := c.Param("id")
	// Don't allow disabling self
	if caller.AgentID == id && !payload.IsActive {
		badRequest(c, "Cannot disable your own account")
		return
	}

	if err := h.auth.SetAgentActive(c.Request.Context(), caller, id, payload.IsActive); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "is_active": payload.IsActive})
}

func (h *AdminHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.ListSettings(c.Request.Context(), callerFrom(c).TenantID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	result := make([]gin.H, 0, len(settings))
	for _, s := range settings {
		value := s.Value
		if secretSettings[s.Key] && value != "" {
			value = "********"
		}
		result = append(result, gin.H{"key": s.Key, "value": value, "updated_at": s.UpdatedAt})
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) SetSetting(c *gin.Context) {
	var payload struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if !ValidConfigKey(payload.Key) {
		badRequest(c, "Invalid setting key")
		return
	}
	if secretSettings[payload.Key] {
		badRequest(c, "Use the channel endpoints to change "+payload.Key)
		return
	}
	value := SanitizeString(payload.Value)
	if len(value) > MaxConfigValLength {
		badRequest(c, "Setting value too long")
		return
	}
	if err := h.settings.SetSetting(c.Request.Context(), callerFrom(c).TenantID, payload.Key, value); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "key": payload.Key})
}
