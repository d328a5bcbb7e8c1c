package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sarvangi2609/criczz/internal/database"
)

// activeSlotIndex keeps at most one holding booking per box, date and start.
const activeSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot
	ON bookings (box_id, slot_date, start_time)
	WHERE booking_status IN ('pending', 'confirmed')`

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Booking{}); err != nil {
		return err
	}
	return db.Exec(activeSlotIndex).Error
}

type ListFilters struct {
	Status Status
	Date   string
	Limit  int
	Offset int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// createAttempts bounds the retries after a booking number collision.
const createAttempts = 3

// Create inserts b. The partial unique index makes this the atomic
// check-and-insert for the slot. Any other unique clash can only be the
// booking number, which is redrawn.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	for attempt := 1; ; attempt++ {
		err := r.db.WithContext(ctx).Create(b).Error
		switch {
		case err == nil:
			return nil
		case database.UniqueIndexViolated(err, "idx_bookings_active_slot", "bookings.box_id", "bookings.slot_date", "bookings.start_time"):
			return ErrSlotTaken
		case database.IsUniqueViolation(err) && attempt < createAttempts:
			b.BookingNumber = bookingNumber(b.CreatedAt)
			continue
		}
		return fmt.Errorf("create booking: %w", err)
	}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// HoldingForDate returns the bookings that occupy a slot of box on date.
func (r *Repository) HoldingForDate(ctx context.Context, boxID, date string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("box_id = ? AND slot_date = ? AND booking_status IN ?", boxID, date, []Status{StatusPending, StatusConfirmed}).
		Order("start_time").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("holding bookings: %w", err)
	}
	return out, nil
}

func (r *Repository) ListByPayer(ctx context.Context, payerID string, f ListFilters) ([]Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&Booking{}).Where("payer_id = ?", payerID)
	return r.list(q, f)
}

func (r *Repository) ListByBox(ctx context.Context, boxID string, f ListFilters) ([]Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&Booking{}).Where("box_id = ?", boxID)
	return r.list(q, f)
}

func (r *Repository) list(q *gorm.DB, f ListFilters) ([]Booking, int64, error) {
	if f.Status != "" {
		q = q.Where("booking_status = ?", f.Status)
	}
	if f.Date != "" {
		q = q.Where("slot_date = ?", f.Date)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	var out []Booking
	err := q.Order("slot_date DESC, start_time DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return out, total, nil
}

// Cancel moves a holding booking to cancelled. It reports false when the
// booking was no longer pending or confirmed at write time.
// Cancel cancels a pending or confirmed booking and returns the row as
// it stands under the cancel. The update holds the row lock until the
// read is done, so the payment status seen is the one a concurrent
// capture left before the cancel, never one committed after it.
func (r *Repository) Cancel(ctx context.Context, id, reason string, at time.Time) (*Booking, bool, error) {
	var cancelled *Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Booking{}).
			Where("id = ? AND booking_status IN ?", id, []Status{StatusPending, StatusConfirmed}).
			Updates(map[string]any{
				"booking_status":      StatusCancelled,
				"cancellation_reason": reason,
				"cancelled_at":        at,
				"updated_at":          at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		var b Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return err
		}
		cancelled = &b
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cancel booking: %w", err)
	}
	return cancelled, cancelled != nil, nil
}

// ConfirmPaid confirms a pending booking once its payment is captured.
func (r *Repository) ConfirmPaid(ctx context.Context, id, gatewayPaymentID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND booking_status = ?", id, StatusPending).
		Updates(map[string]any{
			"booking_status":     StatusConfirmed,
			"payment_status":     PaymentPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            at,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("confirm booking: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetPaymentStatus moves payment_status to next from any status that may
// precede it.
func (r *Repository) SetPaymentStatus(ctx context.Context, id string, next PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND payment_status IN ?", id, next.sourcesOf()).
		Updates(map[string]any{
			"payment_status": next,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("set payment status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) SetPaymentOrder(ctx context.Context, id, orderID string) error {
	err := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_order_id": orderID, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set payment order: %w", err)
	}
	return nil
}

func (r *Repository) MarkNoShow(ctx context.Context, id, note string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND booking_status = ?", id, StatusConfirmed).
		Updates(map[string]any{
			"booking_status": StatusNoShow,
			"owner_notes":    note,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark no-show: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteElapsed completes confirmed bookings whose slot ended at or
// before date/clock. Dates and clocks compare lexically.
func (r *Repository) CompleteElapsed(ctx context.Context, date, clock string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("booking_status = ?", StatusConfirmed).
		Where("(slot_date < ? OR (slot_date = ? AND end_time <= ?))", date, date, clock).
		Updates(map[string]any{
			"booking_status": StatusCompleted,
			"updated_at":     at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("complete elapsed bookings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ExpiredHolds lists unpaid online holds created before cutoff.
func (r *Repository) ExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("booking_status = ? AND booking_type = ? AND payment_status IN ? AND created_at < ?",
			StatusPending, TypeOnline, []PaymentStatus{PaymentPending, PaymentFailed}, cutoff).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("expired holds: %w", err)
	}
	return out, nil
}

// ReleaseHold cancels an unpaid pending booking. It loses to a capture
// that confirmed the booking first.
func (r *Repository) ReleaseHold(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND booking_status = ? AND payment_status IN ?", id, StatusPending, []PaymentStatus{PaymentPending, PaymentFailed}).
		Updates(map[string]any{
			"booking_status":      StatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("release hold: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
