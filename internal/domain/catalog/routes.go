package catalog

import (
	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/middleware"
)

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/boxes", h.List)
	rg.GET("/boxes/:id", h.Get)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/boxes", middleware.RequireRole("owner", "admin"), h.Create)
}
