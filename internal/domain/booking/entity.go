package booking

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range statusTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Holds reports whether a booking in this status occupies its slot.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed, PaymentRefunded},
	PaymentFailed:  {PaymentPaid, PaymentRefunded},
	PaymentPaid:    {PaymentRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, n := range paymentTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// sourcesOf lists the payment statuses from which next is reachable.
func (s PaymentStatus) sourcesOf() []PaymentStatus {
	var out []PaymentStatus
	for from, tos := range paymentTransitions {
		for _, to := range tos {
			if to == s {
				out = append(out, from)
			}
		}
	}
	return out
}

type Type string

const (
	TypeOnline  Type = "online"
	TypeOffline Type = "offline"
)

// Booking grants one slot of a box on one date to a payer. Amounts are in
// paise. Payer, box and owner names are snapshots taken at creation.
type Booking struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BookingNumber string `json:"booking_number" gorm:"uniqueIndex;type:varchar(32);not null"`

	PayerID    string `json:"payer_id" gorm:"index;type:varchar(36);not null"`
	PayerName  string `json:"payer_name"`
	PayerPhone string `json:"payer_phone"`

	BoxID   string `json:"box_id" gorm:"index;type:varchar(36);not null"`
	BoxName string `json:"box_name"`
	OwnerID string `json:"owner_id" gorm:"index;type:varchar(36);not null"`

	SlotDate        string `json:"booking_date" gorm:"type:varchar(10);not null"`
	StartTime       string `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime         string `json:"end_time" gorm:"type:varchar(5);not null"`
	DurationMinutes int    `json:"duration_minutes"`

	BaseAmount     int64 `json:"base_amount"`
	PlatformFee    int64 `json:"platform_fee"`
	TaxAmount      int64 `json:"tax_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	TotalAmount    int64 `json:"total_amount"`

	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);not null"`
	BookingStatus Status        `json:"booking_status" gorm:"type:varchar(16);not null;index"`
	BookingType   Type          `json:"booking_type" gorm:"type:varchar(16);not null"`

	MatchRequestID   *string    `json:"match_request_id,omitempty" gorm:"type:varchar(36)"`
	PaymentOrderID   string     `json:"payment_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	UserNotes          string `json:"user_notes,omitempty"`
	OwnerNotes         string `json:"owner_notes,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// StartsAt resolves the slot start in loc.
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", b.SlotDate+" "+b.StartTime, loc)
}

// EndsAt resolves the slot end in loc. "24:00" is the following midnight.
func (b *Booking) EndsAt(loc *time.Location) (time.Time, error) {
	if b.EndTime == "24:00" {
		day, err := time.ParseInLocation("2006-01-02", b.SlotDate, loc)
		if err != nil {
			return time.Time{}, err
		}
		return day.AddDate(0, 0, 1), nil
	}
	return time.ParseInLocation("2006-01-02 15:04", b.SlotDate+" "+b.EndTime, loc)
}

// SlotView is one row of an availability listing.
type SlotView struct {
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Price       int64   `json:"price"`
	IsAvailable bool    `json:"is_available"`
	BookingID   *string `json:"booking_id,omitempty"`
}

type Availability struct {
	BoxID   string     `json:"box_id"`
	BoxName string     `json:"box_name"`
	Date    string     `json:"date"`
	Weekend bool       `json:"is_weekend"`
	Slots   []SlotView `json:"slots"`
}
