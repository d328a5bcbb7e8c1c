package payment

type CreateOrderRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
}

type OrderResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	BookingID string `json:"booking_id"`
	KeyID     string `json:"razorpay_key_id"`
}

type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type VerifyResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Status    Status `json:"status,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

type RefundPaymentRequest struct {
	Amount int64  `json:"amount" validate:"gte=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}
