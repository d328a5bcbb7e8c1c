package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sarvangi2609/criczz/internal/database"
)

// livePaymentIndex allows one payment per booking that has not failed.
const livePaymentIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_live_booking
	ON payments (booking_id)
	WHERE status <> 'failed'`

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Payment{}); err != nil {
		return err
	}
	return db.Exec(livePaymentIndex).Error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, p *Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if database.IsUniqueViolation(err) {
		return ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *Repository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Payment, error) {
	return r.first(ctx, "gateway_payment_id = ?", gatewayPaymentID)
}

// LiveForBooking returns the booking's payment that has not failed.
func (r *Repository) LiveForBooking(ctx context.Context, bookingID string) (*Payment, error) {
	return r.first(ctx, "booking_id = ? AND status <> ?", bookingID, StatusFailed)
}

func (r *Repository) first(ctx context.Context, query string, args ...any) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// MarkAuthorized records that the gateway holds funds for a created order.
func (r *Repository) MarkAuthorized(ctx context.Context, orderID, gatewayPaymentID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status = ?", orderID, StatusCreated).
		Updates(map[string]any{
			"status":             StatusAuthorized,
			"gateway_payment_id": gatewayPaymentID,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("authorize payment: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkCaptured moves a created payment to captured. False means another
// path already settled the order.
func (r *Repository) MarkCaptured(ctx context.Context, orderID, gatewayPaymentID, signature, method string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status IN ?", orderID, []Status{StatusCreated, StatusAuthorized}).
		Updates(map[string]any{
			"status":             StatusCaptured,
			"gateway_payment_id": gatewayPaymentID,
			"signature":          signature,
			"method":             method,
			"paid_at":            at,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("capture payment: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) MarkFailed(ctx context.Context, orderID, code, description string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status IN ?", orderID, []Status{StatusCreated, StatusAuthorized}).
		Updates(map[string]any{
			"status":            StatusFailed,
			"error_code":        code,
			"error_description": description,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("fail payment: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClaimRefund marks a captured payment as having a refund in flight so
// that concurrent refund calls cannot both reach the gateway. A claim
// older than staleBefore is treated as abandoned and taken over.
func (r *Repository) ClaimRefund(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", id, StatusCaptured).
		Where("refund_requested_at IS NULL OR refund_requested_at < ?", staleBefore).
		Updates(map[string]any{"refund_requested_at": at, "updated_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("claim refund: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseRefundClaim drops the claim taken at claimedAt. A claim that
// has since been taken over is left alone.
func (r *Repository) ReleaseRefundClaim(ctx context.Context, id string, claimedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ? AND refund_requested_at = ?", id, StatusCaptured, claimedAt).
		Updates(map[string]any{"refund_requested_at": nil, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("release refund claim: %w", err)
	}
	return nil
}

// MarkRefunded moves a captured payment to refunded.
func (r *Repository) MarkRefunded(ctx context.Context, id, refundID string, amount int64, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", id, StatusCaptured).
		Updates(map[string]any{
			"status":        StatusRefunded,
			"refund_id":     refundID,
			"refund_amount": amount,
			"refund_reason": reason,
			"refunded_at":   at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark refunded: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
