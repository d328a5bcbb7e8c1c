package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/middleware"
	"github.com/sarvangi2609/criczz/internal/pkg/response"
	"github.com/sarvangi2609/criczz/internal/pkg/validator"
)

type CreateBoxRequest struct {
	Name                      string   `json:"name" validate:"required"`
	Description               string   `json:"description"`
	Address                   string   `json:"address"`
	Area                      string   `json:"area" validate:"required"`
	City                      string   `json:"city" validate:"required"`
	PricePerHour              int64    `json:"price_per_hour" validate:"required,gt=0"`
	WeekendPricePerHour       int64    `json:"weekend_price_per_hour" validate:"gte=0"`
	OpeningTime               string   `json:"opening_time" validate:"omitempty,hhmm"`
	ClosingTime               string   `json:"closing_time" validate:"omitempty,hhmm"`
	SlotDurationMinutes       int      `json:"slot_duration_minutes" validate:"omitempty,oneof=30 60 90 120"`
	CancellationWindowMinutes int      `json:"cancellation_window_minutes" validate:"gte=0"`
	Amenities                 []string `json:"amenities"`
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	boxes, total, err := h.repo.List(c.Request.Context(), BoxFilters{
		City:   c.Query("city"),
		Area:   c.Query("area"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"boxes": boxes, "total": total, "page": page})
}

func (h *Handler) Get(c *gin.Context) {
	box, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, box)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.FromError(c, apperr.Validation("invalid box", errs))
		return
	}

	box := &CricketBox{
		OwnerID:                   middleware.UserID(c),
		Name:                      req.Name,
		Description:               req.Description,
		Address:                   req.Address,
		Area:                      req.Area,
		City:                      req.City,
		PricePerHour:              req.PricePerHour,
		WeekendPricePerHour:       req.WeekendPricePerHour,
		OpeningTime:               req.OpeningTime,
		ClosingTime:               req.ClosingTime,
		SlotDurationMinutes:       req.SlotDurationMinutes,
		CancellationWindowMinutes: req.CancellationWindowMinutes,
		Amenities:                 req.Amenities,
		IsActive:                  true,
	}
	if err := h.repo.Create(c.Request.Context(), box); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, box)
}
