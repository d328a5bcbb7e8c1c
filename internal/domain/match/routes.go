package match

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/matches", h.ListOpen)
	rg.GET("/matches/:id", h.Get)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/matches", h.Create)
	rg.GET("/me/matches", h.ListMine)
	rg.GET("/me/matches/joined", h.ListJoined)

	m := rg.Group("/matches/:id")
	{
		m.PUT("", h.Update)
		m.POST("/join", h.Join)
		m.POST("/withdraw", h.Withdraw)
		m.POST("/cancel", h.Cancel)
		m.POST("/requests/:userId/accept", h.Accept)
		m.POST("/requests/:userId/reject", h.Reject)
	}
}
