package payment

import "time"

type Status string

const (
	StatusCreated    Status = "created"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

var statusTransitions = map[Status][]Status{
	StatusCreated:    {StatusAuthorized, StatusCaptured, StatusFailed},
	StatusAuthorized: {StatusCaptured, StatusFailed},
	StatusCaptured:   {StatusRefunded},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range statusTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Payment is one gateway order for one booking. Amounts are in paise.
type Payment struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BookingID string `json:"booking_id" gorm:"index;type:varchar(36);not null"`
	PayerID   string `json:"payer_id" gorm:"index;type:varchar(36);not null"`
	OwnerID   string `json:"owner_id" gorm:"type:varchar(36)"`

	OrderID          string `json:"razorpay_order_id" gorm:"uniqueIndex;type:varchar(64);not null"`
	GatewayPaymentID string `json:"razorpay_payment_id,omitempty" gorm:"index;type:varchar(64)"`
	Signature        string `json:"-"`

	Amount             int64  `json:"amount"`
	Currency           string `json:"currency" gorm:"type:varchar(8)"`
	PlatformCommission int64  `json:"platform_commission"`
	OwnerAmount        int64  `json:"owner_amount"`

	Status           Status `json:"status" gorm:"type:varchar(16);not null;index"`
	Method           string `json:"payment_method,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`

	RefundID          string     `json:"refund_id,omitempty"`
	RefundAmount      int64      `json:"refund_amount,omitempty"`
	RefundReason      string     `json:"refund_reason,omitempty"`
	RefundRequestedAt *time.Time `json:"-"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
