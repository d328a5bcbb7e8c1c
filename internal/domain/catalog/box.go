package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sarvangi2609/criczz/internal/apperr"
)

const (
	DefaultOpeningTime  = "06:00"
	DefaultClosingTime  = "22:00"
	DefaultSlotDuration = 60
)

var (
	ErrBoxNotFound     = apperr.New(apperr.ErrNotFound, "BOX_NOT_FOUND", "cricket box not found")
	ErrBoxInactive     = apperr.New(apperr.ErrInvalidState, "BOX_INACTIVE", "cricket box is not accepting bookings")
	ErrInvalidSchedule = apperr.New(apperr.ErrValidation, "INVALID_SCHEDULE", "invalid opening hours or slot duration")
)

// CricketBox is a bookable venue. Prices are in paise.
type CricketBox struct {
	ID                        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID                   string    `json:"owner_id" gorm:"index;not null"`
	Name                      string    `json:"name" gorm:"not null"`
	Description               string    `json:"description,omitempty"`
	Address                   string    `json:"address,omitempty"`
	Area                      string    `json:"area" gorm:"index"`
	City                      string    `json:"city" gorm:"index"`
	PricePerHour              int64     `json:"price_per_hour" gorm:"not null"`
	WeekendPricePerHour       int64     `json:"weekend_price_per_hour,omitempty"`
	OpeningTime               string    `json:"opening_time" gorm:"type:varchar(5);not null"`
	ClosingTime               string    `json:"closing_time" gorm:"type:varchar(5);not null"`
	SlotDurationMinutes       int       `json:"slot_duration_minutes" gorm:"not null"`
	CancellationWindowMinutes int       `json:"cancellation_window_minutes"`
	Amenities                 []string  `json:"amenities" gorm:"serializer:json;type:text"`
	IsActive                  bool      `json:"is_active"`
	TotalBookings             int64     `json:"total_bookings"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func (CricketBox) TableName() string {
	return "cricket_boxes"
}

// Slot is one grid cell of a box's day, in "HH:MM".
type Slot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func (b *CricketBox) applyDefaults() {
	if b.OpeningTime == "" {
		b.OpeningTime = DefaultOpeningTime
	}
	if b.ClosingTime == "" {
		b.ClosingTime = DefaultClosingTime
	}
	if b.SlotDurationMinutes == 0 {
		b.SlotDurationMinutes = DefaultSlotDuration
	}
}

// Grid lists the day's slots from opening to closing time.
func (b *CricketBox) Grid() ([]Slot, error) {
	open, err := ParseClock(b.OpeningTime)
	if err != nil {
		return nil, ErrInvalidSchedule.WithCause(err)
	}
	closing, err := ParseClock(b.ClosingTime)
	if err != nil {
		return nil, ErrInvalidSchedule.WithCause(err)
	}
	step := b.SlotDurationMinutes
	if step <= 0 || closing <= open {
		return nil, ErrInvalidSchedule
	}

	slots := make([]Slot, 0, (closing-open)/step)
	for start := open; start+step <= closing; start += step {
		slots = append(slots, Slot{Start: FormatClock(start), End: FormatClock(start + step)})
	}
	return slots, nil
}

// OnGrid reports whether start-end is exactly one slot of the grid.
func (b *CricketBox) OnGrid(start, end string) bool {
	slots, err := b.Grid()
	if err != nil {
		return false
	}
	for _, s := range slots {
		if s.Start == start && s.End == end {
			return true
		}
	}
	return false
}

// RateFor is the hourly rate for the given day. Saturday and Sunday use the
// weekend rate when one is set.
func (b *CricketBox) RateFor(day time.Time) int64 {
	wd := day.Weekday()
	if (wd == time.Saturday || wd == time.Sunday) && b.WeekendPricePerHour > 0 {
		return b.WeekendPricePerHour
	}
	return b.PricePerHour
}

// SlotPrice is the price of one slot on day.
func (b *CricketBox) SlotPrice(day time.Time) int64 {
	minutes := int64(b.SlotDurationMinutes)
	return (b.RateFor(day)*minutes + 30) / 60
}

func (b *CricketBox) CancellationWindow(fallback time.Duration) time.Duration {
	if b.CancellationWindowMinutes > 0 {
		return time.Duration(b.CancellationWindowMinutes) * time.Minute
	}
	return fallback
}

// ParseClock turns "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return hh*60 + mm, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
