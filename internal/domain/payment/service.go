package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
)

const (
	inactiveBookingRefundReason = "booking no longer active"
	relatedTypeBooking          = "booking"
	relatedTypePayment          = "payment"

	// recordTimeout bounds the writes that follow a gateway answer.
	recordTimeout = 5 * time.Second
)

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

type BoxCounter interface {
	IncrementTotalBookings(ctx context.Context, id string) error
}

type Options struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

type Service struct {
	db       *gorm.DB
	payments *Repository
	bookings *booking.Repository
	boxes    BoxCounter
	gateway  Gateway
	notifier Notifier
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, payments *Repository, bookings *booking.Repository, boxes BoxCounter, gateway Gateway, notifier Notifier, opts Options, log *zap.Logger) *Service {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Service{
		db:       db,
		payments: payments,
		bookings: bookings,
		boxes:    boxes,
		gateway:  gateway,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// CreateOrder opens a gateway order for the payer's pending booking. A
// booking that already has a live order gets that order back.
func (s *Service) CreateOrder(ctx context.Context, payerID, bookingID string) (*OrderResponse, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PayerID != payerID {
		return nil, ErrForbidden
	}
	if b.BookingType != booking.TypeOnline || b.PaymentStatus == booking.PaymentPaid || b.PaymentStatus == booking.PaymentRefunded {
		return nil, ErrAlreadyPaid
	}
	if b.BookingStatus != booking.StatusPending {
		return nil, ErrNotPayable
	}

	if live, err := s.payments.LiveForBooking(ctx, b.ID); err == nil {
		if live.Status == StatusCreated || live.Status == StatusAuthorized {
			return s.orderResponse(live), nil
		}
		return nil, ErrAlreadyPaid
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	order, err := s.gateway.CreateOrder(gctx, OrderRequest{
		Amount:   b.TotalAmount,
		Currency: s.opts.Currency,
		Receipt:  b.BookingNumber,
		Notes:    map[string]string{"booking_id": b.ID, "user_id": payerID},
	})
	if err != nil {
		s.log.Error("gateway create order", zap.String("booking_id", b.ID), zap.Error(err))
		return nil, apperr.Upstream("GATEWAY_ORDER_FAILED", err)
	}

	now := s.now()
	p := &Payment{
		ID:                 uuid.NewString(),
		BookingID:          b.ID,
		PayerID:            payerID,
		OwnerID:            b.OwnerID,
		OrderID:            order.ID,
		Amount:             b.TotalAmount,
		Currency:           s.opts.Currency,
		PlatformCommission: b.PlatformFee,
		OwnerAmount:        b.TotalAmount - b.PlatformFee,
		Status:             StatusCreated,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		if !errors.Is(err, ErrDuplicatePayment) {
			return nil, err
		}
		// a concurrent call stored its order first
		s.log.Info("order superseded by concurrent order", zap.String("booking_id", b.ID), zap.String("order_id", order.ID))
		live, err := s.payments.LiveForBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		return s.orderResponse(live), nil
	}
	if err := s.bookings.SetPaymentOrder(ctx, b.ID, order.ID); err != nil {
		s.log.Error("link order to booking", zap.String("booking_id", b.ID), zap.Error(err))
	}

	s.log.Info("payment order created",
		zap.String("booking_id", b.ID),
		zap.String("order_id", order.ID),
		zap.String("payer_id", payerID),
		zap.Int64("amount", p.Amount),
	)
	return s.orderResponse(p), nil
}

func (s *Service) orderResponse(p *Payment) *OrderResponse {
	return &OrderResponse{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		BookingID: p.BookingID,
		KeyID:     s.opts.KeyID,
	}
}

// Verify handles the checkout callback. A bad signature fails the order and
// reports success=false without an error.
func (s *Service) Verify(ctx context.Context, payerID string, req VerifyRequest) (*VerifyResponse, error) {
	p, err := s.payments.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != payerID {
		return nil, ErrForbidden
	}

	if !VerifyOrderSignature(s.opts.KeySecret, req.OrderID, req.PaymentID, req.Signature) {
		s.log.Warn("checkout signature mismatch",
			zap.String("order_id", req.OrderID),
			zap.String("payer_id", payerID),
		)
		if err := s.fail(ctx, p, "SIGNATURE_INVALID", "Invalid payment signature"); err != nil {
			return nil, err
		}
		return &VerifyResponse{
			Success:   false,
			Message:   "Payment verification failed",
			BookingID: p.BookingID,
			PaymentID: p.ID,
		}, nil
	}

	p, err = s.capture(ctx, p, req.PaymentID, req.Signature, "")
	if err != nil {
		return nil, err
	}

	resp := &VerifyResponse{BookingID: p.BookingID, PaymentID: p.ID, Status: p.Status}
	switch p.Status {
	case StatusCaptured:
		resp.Success = true
		resp.Message = "Payment verified successfully"
	case StatusRefunded:
		resp.Message = "Booking is no longer active, payment refunded"
	default:
		resp.Message = "Payment verification failed"
	}
	return resp, nil
}

// capture settles the order as captured and confirms its booking in one
// transaction. Only the call that moves the payment out of created runs
// the side effects; every other call returns the stored state.
func (s *Service) capture(ctx context.Context, p *Payment, gatewayPaymentID, signature, method string) (*Payment, error) {
	now := s.now()
	var transitioned, confirmed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		transitioned, err = s.payments.WithTx(tx).MarkCaptured(ctx, p.OrderID, gatewayPaymentID, signature, method, now)
		if err != nil || !transitioned {
			return err
		}
		bookings := s.bookings.WithTx(tx)
		confirmed, err = bookings.ConfirmPaid(ctx, p.BookingID, gatewayPaymentID, now)
		if err != nil || confirmed {
			return err
		}
		_, err = bookings.SetPaymentStatus(ctx, p.BookingID, booking.PaymentPaid)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !transitioned {
		s.log.Info("capture already settled", zap.String("order_id", p.OrderID))
		return s.payments.GetByOrderID(ctx, p.OrderID)
	}

	s.log.Info("payment captured",
		zap.String("order_id", p.OrderID),
		zap.String("booking_id", p.BookingID),
		zap.String("payer_id", p.PayerID),
		zap.Bool("booking_confirmed", confirmed),
	)

	captured, err := s.payments.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	if !confirmed {
		s.log.Warn("captured payment for inactive booking, refunding",
			zap.String("order_id", p.OrderID),
			zap.String("booking_id", p.BookingID),
		)
		refunded, err := s.refund(ctx, captured, 0, inactiveBookingRefundReason)
		if err != nil {
			s.log.Error("auto refund", zap.String("order_id", p.OrderID), zap.Error(err))
			return captured, nil
		}
		return refunded, nil
	}

	s.announceConfirmed(ctx, p.BookingID)
	return captured, nil
}

func (s *Service) announceConfirmed(ctx context.Context, bookingID string) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		s.log.Error("load confirmed booking", zap.String("booking_id", bookingID), zap.Error(err))
		return
	}
	if s.boxes != nil {
		if err := s.boxes.IncrementTotalBookings(ctx, b.BoxID); err != nil {
			s.log.Error("increment box bookings", zap.String("box_id", b.BoxID), zap.Error(err))
		}
	}
	s.notify(ctx, notification.Message{
		UserID:      b.PayerID,
		Type:        notification.TypeBookingConfirmed,
		Title:       "Booking Confirmed!",
		Body:        fmt.Sprintf("Your booking at %s is confirmed!", b.BoxName),
		RelatedID:   b.ID,
		RelatedType: relatedTypeBooking,
	})
	s.notify(ctx, notification.Message{
		UserID:      b.OwnerID,
		Type:        notification.TypeBookingCreated,
		Title:       "New Booking!",
		Body:        fmt.Sprintf("New booking for %s at %s", b.SlotDate, b.StartTime),
		RelatedID:   b.ID,
		RelatedType: relatedTypeBooking,
	})
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// HandleWebhook applies a signed gateway event. Events for orders this
// service does not know are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhook(s.opts.WebhookSecret, body, signature) {
		s.log.Warn("webhook signature mismatch", zap.Int("body_size", len(body)))
		return ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ErrInvalidPayload.WithCause(err)
	}

	switch ev.Event {
	case "payment.authorized":
		return s.onAuthorized(ctx, ev.Payload.Payment.Entity)
	case "payment.captured":
		return s.onCaptured(ctx, ev.Payload.Payment.Entity)
	case "payment.failed":
		return s.onFailed(ctx, ev.Payload.Payment.Entity)
	case "refund.processed":
		return s.onRefunded(ctx, ev.Payload.Refund.Entity)
	default:
		s.log.Debug("webhook event ignored", zap.String("event", ev.Event))
		return nil
	}
}

func (s *Service) lookupOrder(ctx context.Context, event, orderID string) (*Payment, error) {
	p, err := s.payments.GetByOrderID(ctx, orderID)
	if errors.Is(err, ErrPaymentNotFound) {
		s.log.Warn("webhook for unknown order", zap.String("event", event), zap.String("order_id", orderID))
		return nil, nil
	}
	return p, err
}

func (s *Service) onAuthorized(ctx context.Context, e paymentEntity) error {
	_, err := s.payments.MarkAuthorized(ctx, e.OrderID, e.ID, s.now())
	return err
}

func (s *Service) onCaptured(ctx context.Context, e paymentEntity) error {
	p, err := s.lookupOrder(ctx, "payment.captured", e.OrderID)
	if err != nil || p == nil {
		return err
	}
	if e.Amount != 0 && e.Amount != p.Amount {
		s.log.Error("captured amount mismatch",
			zap.String("order_id", p.OrderID),
			zap.Int64("expected", p.Amount),
			zap.Int64("got", e.Amount),
		)
		reason := fmt.Sprintf("amount mismatch callback=%d expected=%d", e.Amount, p.Amount)
		return s.fail(ctx, p, "AMOUNT_MISMATCH", reason)
	}
	if p.Status == StatusFailed {
		s.log.Error("capture reported for failed order", zap.String("order_id", p.OrderID), zap.String("gateway_payment_id", e.ID))
		return nil
	}
	_, err = s.capture(ctx, p, e.ID, "", e.Method)
	return err
}

func (s *Service) onFailed(ctx context.Context, e paymentEntity) error {
	p, err := s.lookupOrder(ctx, "payment.failed", e.OrderID)
	if err != nil || p == nil {
		return err
	}
	return s.fail(ctx, p, e.ErrorCode, e.ErrorDescription)
}

// fail moves a created order to failed. The booking and the payer only
// hear about it from the call that made the transition.
func (s *Service) fail(ctx context.Context, p *Payment, code, description string) error {
	failed, err := s.payments.MarkFailed(ctx, p.OrderID, code, description, s.now())
	if err != nil || !failed {
		return err
	}

	s.log.Info("payment failed",
		zap.String("order_id", p.OrderID),
		zap.String("booking_id", p.BookingID),
		zap.String("error_code", code),
	)
	if _, err := s.bookings.SetPaymentStatus(ctx, p.BookingID, booking.PaymentFailed); err != nil {
		s.log.Error("mark booking payment failed", zap.String("booking_id", p.BookingID), zap.Error(err))
	}
	s.notify(ctx, notification.Message{
		UserID:      p.PayerID,
		Type:        notification.TypePaymentFailed,
		Title:       "Payment Failed",
		Body:        "Your payment could not be completed. You can retry from the booking page.",
		RelatedID:   p.BookingID,
		RelatedType: relatedTypeBooking,
	})
	return nil
}

func (s *Service) onRefunded(ctx context.Context, e refundEntity) error {
	p, err := s.payments.GetByGatewayPaymentID(ctx, e.PaymentID)
	if errors.Is(err, ErrPaymentNotFound) {
		s.log.Warn("refund for unknown payment", zap.String("gateway_payment_id", e.PaymentID))
		return nil
	}
	if err != nil {
		return err
	}
	amount := e.Amount
	if amount == 0 {
		amount = p.Amount
	}
	ok, err := s.payments.MarkRefunded(ctx, p.ID, e.ID, amount, p.RefundReason, s.now())
	if err != nil || !ok {
		return err
	}
	s.afterRefund(ctx, p, amount)
	return nil
}

// Refund returns a captured payment, in full when amount is 0. The payer or
// the box owner may ask. A payment is refunded at most once.
func (s *Service) Refund(ctx context.Context, requesterID, paymentID string, amount int64, reason string) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != requesterID && p.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return s.refund(ctx, p, amount, reason)
}

// RefundForBooking fully refunds the booking's captured payment.
func (s *Service) RefundForBooking(ctx context.Context, bookingID, reason string) error {
	p, err := s.payments.LiveForBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	_, err = s.refund(ctx, p, 0, reason)
	return err
}

func (s *Service) refund(ctx context.Context, p *Payment, amount int64, reason string) (*Payment, error) {
	switch p.Status {
	case StatusCaptured:
	case StatusRefunded:
		return nil, ErrAlreadyRefunded
	default:
		return nil, ErrNotRefundable
	}
	if amount == 0 {
		amount = p.Amount
	}
	if amount < 0 || amount > p.Amount {
		return nil, ErrInvalidAmount
	}

	now := s.now().Truncate(time.Microsecond)
	claimed, err := s.payments.ClaimRefund(ctx, p.ID, now, now.Add(-s.refundClaimTTL()))
	if err != nil {
		return nil, err
	}
	if !claimed {
		cur, err := s.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if cur.Status == StatusRefunded {
			return nil, ErrAlreadyRefunded
		}
		return nil, ErrRefundInProgress
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	res, err := s.gateway.Refund(gctx, RefundRequest{PaymentID: p.GatewayPaymentID, Amount: amount, Reason: reason})

	// The outcome is recorded even when the caller has gone away.
	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer wcancel()
	if err != nil {
		if rerr := s.payments.ReleaseRefundClaim(wctx, p.ID, now); rerr != nil {
			s.log.Error("release refund claim", zap.String("payment_id", p.ID), zap.Error(rerr))
		}
		s.log.Error("gateway refund", zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID), zap.Error(err))
		return nil, apperr.Upstream("GATEWAY_REFUND_FAILED", err)
	}

	ok, err := s.payments.MarkRefunded(wctx, p.ID, res.ID, amount, reason, s.now())
	if err != nil {
		return nil, err
	}
	if ok {
		s.log.Info("payment refunded",
			zap.String("payment_id", p.ID),
			zap.String("booking_id", p.BookingID),
			zap.String("refund_id", res.ID),
			zap.Int64("amount", amount),
		)
		s.afterRefund(wctx, p, amount)
	}
	return s.payments.GetByID(wctx, p.ID)
}

// refundClaimTTL is how long a refund claim blocks others. It outlives
// any gateway call the claim holder can still be waiting on.
func (s *Service) refundClaimTTL() time.Duration {
	return 2*s.opts.Timeout + recordTimeout
}

func (s *Service) afterRefund(ctx context.Context, p *Payment, amount int64) {
	if _, err := s.bookings.SetPaymentStatus(ctx, p.BookingID, booking.PaymentRefunded); err != nil {
		s.log.Error("mark booking refunded", zap.String("booking_id", p.BookingID), zap.Error(err))
	}
	s.notify(ctx, notification.Message{
		UserID:      p.PayerID,
		Type:        notification.TypeRefundProcessed,
		Title:       "Refund Processed",
		Body:        fmt.Sprintf("A refund of ₹%d.%02d has been processed", amount/100, amount%100),
		RelatedID:   p.ID,
		RelatedType: relatedTypePayment,
	})
}

// Get returns a payment to its payer or the box owner.
func (s *Service) Get(ctx context.Context, paymentID, requesterID string) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != requesterID && p.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Error("notify", zap.String("user_id", msg.UserID), zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
