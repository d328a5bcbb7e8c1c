package chat

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/conversations", h.ListConversations)
	rg.DELETE("/messages/:messageId", h.DeleteMessage)

	conv := rg.Group("/matches/:id/conversation")
	{
		conv.POST("", h.CreateConversation)
		conv.GET("/messages", h.GetMessages)
		conv.POST("/messages", h.SendMessage)
		conv.POST("/read", h.MarkRead)
	}
}
