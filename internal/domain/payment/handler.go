package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/middleware"
	"github.com/sarvangi2609/criczz/internal/pkg/response"
	"github.com/sarvangi2609/criczz/internal/pkg/validator"
)

const signatureHeader = "X-Razorpay-Signature"

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

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.service.CreateOrder(c.Request.Context(), middleware.UserID(c), req.BookingID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.service.Verify(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) GetPayment(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

func (h *Handler) Refund(c *gin.Context) {
	var req RefundPaymentRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.service.Refund(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"success":       true,
		"message":       "Refund processed successfully",
		"refund_id":     p.RefundID,
		"refund_amount": p.RefundAmount,
		"payment":       p,
	})
}

// Webhook verifies the raw body against the signature header before
// anything is decoded.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable body")
		return
	}
	if err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader)); err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
