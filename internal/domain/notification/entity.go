package notification

import (
	"time"

	"github.com/sarvangi2609/criczz/internal/apperr"
)

// Type represents notification type
type Type string

const (
	TypeBookingCreated   Type = "booking_created"   // owner: new booking
	TypeBookingConfirmed Type = "booking_confirmed" // payer: payment captured
	TypeBookingCancelled Type = "booking_cancelled"
	TypePaymentFailed    Type = "payment_failed"
	TypeRefundProcessed  Type = "refund_processed"
	TypeMatchJoin        Type = "match_join" // creator: someone asked to join
	TypeMatchAccepted    Type = "match_accepted"
	TypeMatchRejected    Type = "match_rejected"
)

var ErrNotificationNotFound = apperr.New(apperr.ErrNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")

// Notification is the durable record of something a user was told.
type Notification struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string     `json:"user_id" gorm:"type:varchar(36);not null;index:idx_notifications_user_unread"`
	Type        Type       `json:"type" gorm:"type:varchar(32);not null"`
	Title       string     `json:"title" gorm:"not null"`
	Message     string     `json:"message"`
	RelatedID   string     `json:"related_id,omitempty"`
	RelatedType string     `json:"related_type,omitempty"`
	ActionURL   string     `json:"action_url,omitempty"`
	IsRead      bool       `json:"is_read" gorm:"index:idx_notifications_user_unread"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// Message is what a component asks to be told to a user.
type Message struct {
	UserID      string
	Type        Type
	Title       string
	Body        string
	RelatedID   string
	RelatedType string
	ActionURL   string
}
