package http

import (
	"net/http"

	"liveassist/internal/infrastructure"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// WhatsAppHandler pairs and manages the tenant's WhatsApp device.
type WhatsAppHandler struct {
	waManager *infrastructure.WhatsAppManager
	log       zerolog.Logger
}

func NewWhatsAppHandler(waManager *infrastructure.WhatsAppManager, log zerolog.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{waManager: waManager, log: log}
}

func (h *WhatsAppHandler) RegisterRoutes(api *gin.RouterGroup) {
	wa := api.Group("/whatsapp")
	wa.Use(func(c *gin.Context) {
		if h.waManager == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp not enabled"})
			return
		}
		c.Next()
	})
	{
		wa.GET("/status", h.Status)
		wa.POST("/connect", h.Connect)
		wa.GET("/qr", h.QRCode)
		wa.POST("/logout", h.Logout)
	}
}

// Connect creates and connects the tenant's WhatsApp client
func (h *WhatsAppHandler) Connect(c *gin.Context) {
	tenantID := callerFrom(c).TenantID
	client, err := h.waManager.ConnectClient(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "connecting",
		"connected": client.IsLoggedIn(),
		"phone":     client.GetPhoneNumber(),
	})
}

// QRCode returns the pairing code as a PNG
func (h *WhatsAppHandler) QRCode(c *gin.Context) {
	client := h.waManager.GetClient(callerFrom(c).TenantID)
	if client == nil {
		c.String(http.StatusConflict, "Not connecting. Call connect first.")
		return
	}

	code := client.GetQR()
	if code == "" {
		if client.IsLoggedIn() {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Status returns WhatsApp connection status for the tenant
func (h *WhatsAppHandler) Status(c *gin.Context) {
	client := h.waManager.GetClient(callerFrom(c).TenantID)
	if client == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "initialized": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":   client.IsConnected(),
		"initialized": true,
		"phone":       client.GetPhoneNumber(),
		"has_qr":      client.GetQR() != "",
	})
}

// Logout clears the tenant's WhatsApp session
func (h *WhatsAppHandler) Logout(c *gin.Context) {
	tenantID := callerFrom(c).TenantID
	if err := h.waManager.LogoutClient(c.Request.Context(), tenantID); err != nil {
		h.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("whatsapp logout")
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
