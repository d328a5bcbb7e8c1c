package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/middleware"
	"github.com/sarvangi2609/criczz/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListConversations(c *gin.Context) {
	list, err := h.service.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"conversations": list, "total": len(list)})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	conv, err := h.service.CreateConversation(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conv)
}

// GetMessages serves ?before=<message id>&limit=N.
func (h *Handler) GetMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, err := h.service.Messages(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Query("before"), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, page)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	msg, err := h.service.Send(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req ReadRequest
	// an empty body marks everything read
	_ = c.ShouldBindJSON(&req)
	m, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.LastReadID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.service.DeleteMessage(c.Request.Context(), c.Param("messageId"), middleware.UserID(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Message deleted"})
}
