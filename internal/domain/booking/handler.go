package booking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/middleware"
	"github.com/sarvangi2609/criczz/internal/pkg/response"
	"github.com/sarvangi2609/criczz/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	if errs := validator.Validate(dst); errs != nil {
		response.FromError(c, apperr.Validation("invalid request", errs))
		return false
	}
	return true
}

func listFilters(c *gin.Context) ListFilters {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return ListFilters{
		Status: Status(c.Query("status")),
		Date:   c.Query("date"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// GetAvailability answers GET /boxes/:id/availability?date=YYYY-MM-DD
func (h *Handler) GetAvailability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required")
		return
	}

	av, err := h.service.ListAvailable(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, av)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if !bind(c, &req) {
		return
	}

	b, err := h.service.Reserve(c.Request.Context(), ReserveRequest{
		BoxID:     req.BoxID,
		Date:      req.BookingDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		PayerID:   middleware.UserID(c),
		Kind:      TypeOnline,
		Notes:     req.Notes,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

func (h *Handler) GetMyBookings(c *gin.Context) {
	f := listFilters(c)
	list, total, err := h.service.ListForPayer(c.Request.Context(), middleware.UserID(c), f)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": list, "total": total})
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) CreateOfflineBooking(c *gin.Context) {
	var req OfflineBookingRequest
	if !bind(c, &req) {
		return
	}

	b, err := h.service.CreateOffline(c.Request.Context(), middleware.UserID(c), OfflineRequest{
		BoxID:           req.BoxID,
		Date:            req.BookingDate,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		AmountCollected: req.AmountCollected,
		Notes:           req.Notes,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

func (h *Handler) GetBoxBookings(c *gin.Context) {
	f := listFilters(c)
	list, total, err := h.service.ListForBox(c.Request.Context(), middleware.UserID(c), c.Param("id"), f)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": list, "total": total})
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	var req NoShowRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	b, err := h.service.MarkNoShow(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Note)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}
