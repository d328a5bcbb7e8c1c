package booking

type CreateBookingRequest struct {
	BoxID       string `json:"box_id" validate:"required"`
	BookingDate string `json:"booking_date" validate:"required,isodate"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
	Notes       string `json:"user_notes" validate:"max=500"`
}

type OfflineBookingRequest struct {
	BoxID           string `json:"box_id" validate:"required"`
	BookingDate     string `json:"booking_date" validate:"required,isodate"`
	StartTime       string `json:"start_time" validate:"required,hhmm"`
	EndTime         string `json:"end_time" validate:"required,hhmm"`
	CustomerName    string `json:"customer_name" validate:"required,max=100"`
	CustomerPhone   string `json:"customer_phone" validate:"max=20"`
	AmountCollected int64  `json:"amount_collected" validate:"gte=0"`
	Notes           string `json:"owner_notes" validate:"max=500"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type NoShowRequest struct {
	Note string `json:"note" validate:"max=500"`
}
