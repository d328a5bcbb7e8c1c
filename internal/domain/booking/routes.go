package booking

import (
	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/middleware"
)

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/boxes/:id/availability", h.GetAvailability)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateBooking)
	rg.GET("/bookings/my", h.GetMyBookings)
	rg.GET("/bookings/:id", h.GetBooking)
	rg.POST("/bookings/:id/cancel", h.CancelBooking)

	owner := rg.Group("/owner", middleware.RequireRole("owner", "admin"))
	owner.POST("/bookings/offline", h.CreateOfflineBooking)
	owner.GET("/boxes/:id/bookings", h.GetBoxBookings)
	owner.POST("/bookings/:id/no-show", h.MarkNoShow)
}
