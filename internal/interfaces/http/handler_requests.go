package http

import (
	"errors"
	"io"
	"net/http"

	"liveassist/internal/entities"

	"github.com/gin-gonic/gin"
)

func (h *Handler) limit(c *gin.Context) (int, bool) {
	n, err := queryInt(c.Query("limit"), "limit")
	if err != nil {
		writeError(c, h.log, err)
		return 0, false
	}
	return int(n), true
}

func (h *Handler) writeList(c *gin.Context, list []entities.AssistanceRequest, err error) {
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if list == nil {
		list = []entities.AssistanceRequest{}
	}
	writePoll(c, h.pollInterval(), list)
}

func (h *Handler) OpenRequests(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	list, err := h.queue.OpenRequests(c.Request.Context(), callerFrom(c), limit)
	h.writeList(c, list, err)
}

func (h *Handler) MyRequests(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	list, err := h.queue.Mine(c.Request.Context(), callerFrom(c), limit)
	h.writeList(c, list, err)
}

func (h *Handler) RequestsByStatus(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	list, err := h.queue.ByStatus(c.Request.Context(), callerFrom(c), c.Param("status"), limit)
	h.writeList(c, list, err)
}

func (h *Handler) PendingCount(c *gin.Context) {
	total, err := h.queue.PendingCount(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writePoll(c, h.pollInterval(), gin.H{"total": total})
}

func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.queue.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writePoll(c, h.pollInterval(), req)
}

type createRequestBody struct {
	Name                string `json:"name"`
	Phone               string `json:"phone"`
	Reason              string `json:"reason"`
	OriginChannel       string `json:"origin_channel"`
	Priority            string `json:"priority"`
	ConversationSummary string `json:"conversation_summary"`
}

func (b createRequestBody) toNewRequest() entities.NewRequest {
	return entities.NewRequest{
		Name:                SanitizeString(b.Name),
		Phone:               SanitizeString(b.Phone),
		Reason:              SanitizeString(b.Reason),
		OriginChannel:       b.OriginChannel,
		Priority:            b.Priority,
		ConversationSummary: SanitizeString(b.ConversationSummary),
	}
}

func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	req, err := h.lifecycle.Create(c.Request.Context(), callerFrom(c), body.toNewRequest())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) Claim(c *gin.Context) {
	req, err := h.claims.Claim(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Reassign(c *gin.Context) {
	var body struct {
		AssignedTo string `json:"assigned_to"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	req, err := h.claims.Reassign(c.Request.Context(), callerFrom(c), c.Param("id"), body.AssignedTo)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Resolve(c *gin.Context) {
	var body struct {
		InternalNote *string `json:"internal_note"`
	}
	// the body is optional; chunked bodies have no Content-Length
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "Invalid request")
			return
		}
	}
	req, err := h.lifecycle.Resolve(c.Request.Context(), callerFrom(c), c.Param("id"), body.InternalNote)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Cancel(c *gin.Context) {
	req, err := h.lifecycle.Cancel(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Reopen(c *gin.Context) {
	req, err := h.lifecycle.Reopen(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ChangePriority(c *gin.Context) {
	var body struct {
		Priority string `json:"priority"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	req, err := h.lifecycle.ChangePriority(c.Request.Context(), callerFrom(c), c.Param("id"), body.Priority)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) SetNote(c *gin.Context) {
	var body struct {
		InternalNote string `json:"internal_note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	req, err := h.lifecycle.SetInternalNote(c.Request.Context(), callerFrom(c), c.Param("id"), SanitizeString(body.InternalNote))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ListMessages(c *gin.Context) {
	since, err := queryInt(c.Query("since"), "since")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	page, err := h.messages.List(c.Request.Context(), callerFrom(c), c.Param("id"), since, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	writePoll(c, h.pollInterval(), page)
}

// AppendMessage records an AGENT entry from the authenticated agent.
func (h *Handler) AppendMessage(c *gin.Context) {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	m, err := h.messages.Append(c.Request.Context(), callerFrom(c), c.Param("id"), entities.SenderAgent, SanitizeString(body.Body))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}
