package payment

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/webhook", h.Webhook)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/orders", h.CreateOrder)
		payments.POST("/verify", h.Verify)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/refund", h.Refund)
	}
}
