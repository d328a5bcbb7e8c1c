package match

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

func (h *Handler) ListOpen(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	list, total, err := h.service.ListOpen(c.Request.Context(), OpenFilters{
		Area:   c.Query("area"),
		Date:   c.Query("date"),
		Skill:  c.Query("skill_level"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"requests": list,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (h *Handler) Get(c *gin.Context) {
	m, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	m, err := h.service.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, m)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	m, err := h.service.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.service.ListCreated(c.Request.Context(), middleware.UserID(c), Status(c.Query("status")))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

func (h *Handler) ListJoined(c *gin.Context) {
	list, err := h.service.ListJoined(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

func (h *Handler) Join(c *gin.Context) {
	var req JoinMatchRequest
	// the message is optional, an empty body is fine
	_ = c.ShouldBindJSON(&req)
	if len(req.Message) > 300 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "message is too long")
		return
	}
	m, err := h.service.Join(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Message)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) Accept(c *gin.Context) {
	m, err := h.service.Accept(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Param("userId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) Reject(c *gin.Context) {
	m, err := h.service.Reject(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Param("userId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) Withdraw(c *gin.Context) {
	m, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) Cancel(c *gin.Context) {
	m, err := h.service.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}
