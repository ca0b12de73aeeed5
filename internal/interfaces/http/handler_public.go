package http

import (
	"net/http"

	"liveassist/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TrackingTokenHeader carries the secret returned on public creation.
const TrackingTokenHeader = "X-Tracking-Token"

// PublicHandler serves the customer widget. Every call is scoped by the
// :tenant path segment; calls on an existing request need its tracking token.
type PublicHandler struct {
	gateway *usecases.SyncGateway
	log     zerolog.Logger
}

func NewPublicHandler(gateway *usecases.SyncGateway, log zerolog.Logger) *PublicHandler {
	return &PublicHandler{gateway: gateway, log: log}
}

func (h *PublicHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/requests", h.Create)
	g.GET("/requests/:id", h.Snapshot)
	g.POST("/requests/:id/messages", h.Append)
	g.POST("/requests/:id/cancel", h.Cancel)
}

func token(c *gin.Context) string {
	return c.GetHeader(TrackingTokenHeader)
}

func (h *PublicHandler) Create(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	in := body.toNewRequest()
	// internal priority and summary are agent-only
	in.Priority = ""
	in.ConversationSummary = ""

	tracked, err := h.gateway.CreatePublic(c.Request.Context(), c.Param("tenant"), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, tracked)
}

func (h *PublicHandler) Snapshot(c *gin.Context) {
	since, err := queryInt(c.Query("since"), "since")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	limit, err := queryInt(c.Query("limit"), "limit")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	snap, err := h.gateway.PublicSnapshot(c.Request.Context(), c.Param("tenant"), c.Param("id"), token(c), since, int(limit))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writePoll(c, h.gateway.PollInterval(), snap)
}

func (h *PublicHandler) Append(c *gin.Context) {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	m, err := h.gateway.PublicAppend(c.Request.Context(), c.Param("tenant"), c.Param("id"), token(c), SanitizeString(body.Body))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *PublicHandler) Cancel(c *gin.Context) {
	view, err := h.gateway.PublicCancel(c.Request.Context(), c.Param("tenant"), c.Param("id"), token(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
