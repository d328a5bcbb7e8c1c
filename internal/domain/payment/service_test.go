package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/database"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
)

const (
	keySecret     = "rzp_secret"
	webhookSecret = "whsec"
)

type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	refunds   []RefundRequest
	orderErr  error
	refundErr error
	onRefund  func(ctx context.Context) error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders++
	return &Order{ID: fmt.Sprintf("order_%d", g.orders), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.onRefund != nil {
		if err := g.onRefund(ctx); err != nil {
			return nil, err
		}
	}
	g.refunds = append(g.refunds, req)
	return &Refund{ID: fmt.Sprintf("rfnd_%d", len(g.refunds)), PaymentID: req.PaymentID, Amount: req.Amount, Status: "processed"}, nil
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) count(userID string, typ notification.Type) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs {
		if m.UserID == userID && m.Type == typ {
			c++
		}
	}
	return c
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	bookings *booking.Service
	payments *Repository
	boxes    *catalog.Repository
	gateway  *fakeGateway
	notifier *recordingNotifier
	owner    *identity.User
	payer    *identity.User
	box      *catalog.CricketBox
	date     string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, identity.AutoMigrate(db))
	require.NoError(t, catalog.AutoMigrate(db))
	require.NoError(t, booking.AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))

	ctx := context.Background()
	users := identity.NewRepository(db)
	f := &fixture{
		db:       db,
		payments: NewRepository(db),
		boxes:    catalog.NewRepository(db),
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
		owner:    &identity.User{Name: "Owner", Phone: "+919000000001", Role: identity.RoleOwner},
		payer:    &identity.User{Name: "Payer", Phone: "+919000000002"},
		date:     time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02"),
	}
	require.NoError(t, users.Create(ctx, f.owner))
	require.NoError(t, users.Create(ctx, f.payer))
	f.box = &catalog.CricketBox{OwnerID: f.owner.ID, Name: "Boundary Box", PricePerHour: 100000, IsActive: true}
	require.NoError(t, f.boxes.Create(ctx, f.box))

	bookingRepo := booking.NewRepository(db)
	f.bookings = booking.NewService(bookingRepo, f.boxes, users, f.notifier, booking.Options{
		Pricing:            booking.Pricing{CommissionPercent: 10},
		HoldTTL:            15 * time.Minute,
		CancellationWindow: 24 * time.Hour,
		Location:           time.UTC,
	}, zap.NewNop())
	f.svc = NewService(db, f.payments, bookingRepo, f.boxes, f.gateway, f.notifier, Options{
		KeyID:         "rzp_test",
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		Timeout:       time.Second,
	}, zap.NewNop())
	f.bookings.SetRefundRequester(f.svc)
	return f
}

// order reserves the 18:00 slot and opens a gateway order for it.
func (f *fixture) order(t *testing.T) (*booking.Booking, *OrderResponse) {
	t.Helper()
	ctx := context.Background()
	b, err := f.bookings.Reserve(ctx, booking.ReserveRequest{
		BoxID: f.box.ID, Date: f.date, StartTime: "18:00", EndTime: "19:00", PayerID: f.payer.ID,
	})
	require.NoError(t, err)
	o, err := f.svc.CreateOrder(ctx, f.payer.ID, b.ID)
	require.NoError(t, err)
	return b, o
}

func (f *fixture) verify(t *testing.T, orderID, paymentID string) *VerifyResponse {
	t.Helper()
	resp, err := f.svc.Verify(context.Background(), f.payer.ID, VerifyRequest{
		OrderID: orderID, PaymentID: paymentID, Signature: SignOrder(keySecret, orderID, paymentID),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) webhook(t *testing.T, body []byte) error {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), body, SignPayload(webhookSecret, body))
}

func (f *fixture) loadBooking(t *testing.T, id string) *booking.Booking {
	t.Helper()
	var b booking.Booking
	require.NoError(t, f.db.First(&b, "id = ?", id).Error)
	return &b
}

func paymentEvent(event, orderID, paymentID string, amount int64) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":                paymentID,
					"order_id":          orderID,
					"amount":            amount,
					"status":            "captured",
					"method":            "upi",
					"error_code":        "BAD_REQUEST_ERROR",
					"error_description": "Payment was declined",
				},
			},
		},
	})
	return body
}

func refundEvent(refundID, paymentID string, amount int64) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": "refund.processed",
		"payload": map[string]any{
			"refund": map[string]any{
				"entity": map[string]any{"id": refundID, "payment_id": paymentID, "amount": amount},
			},
		},
	})
	return body
}

func TestCreateOrder(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	assert.Equal(t, "order_1", o.OrderID)
	assert.Equal(t, b.TotalAmount, o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "rzp_test", o.KeyID)

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, p.Status)
	assert.Equal(t, b.PlatformFee, p.PlatformCommission)
	assert.Equal(t, p.Amount, p.PlatformCommission+p.OwnerAmount)
	assert.Equal(t, o.OrderID, f.loadBooking(t, b.ID).PaymentOrderID)

	again, err := f.svc.CreateOrder(context.Background(), f.payer.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, again.OrderID)
	assert.Equal(t, 1, f.gateway.orders)

	_, err = f.svc.CreateOrder(context.Background(), f.owner.ID, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateOrder_UpstreamFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b, err := f.bookings.Reserve(ctx, booking.ReserveRequest{
		BoxID: f.box.ID, Date: f.date, StartTime: "18:00", EndTime: "19:00", PayerID: f.payer.ID,
	})
	require.NoError(t, err)

	f.gateway.orderErr = errors.New("connection reset")
	_, err = f.svc.CreateOrder(ctx, f.payer.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = f.payments.LiveForBooking(ctx, b.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestVerify_ValidSignatureConfirmsBooking(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	resp := f.verify(t, o.OrderID, "pay_1")
	assert.True(t, resp.Success)
	assert.Equal(t, StatusCaptured, resp.Status)

	got := f.loadBooking(t, b.ID)
	assert.Equal(t, booking.StatusConfirmed, got.BookingStatus)
	assert.Equal(t, booking.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)

	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
	assert.Equal(t, 1, f.notifier.count(f.owner.ID, notification.TypeBookingCreated))

	box, err := f.boxes.GetByID(context.Background(), f.box.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), box.TotalBookings)
}

func TestVerify_WrongSignatureFailsPayment(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	resp, err := f.svc.Verify(context.Background(), f.payer.ID, VerifyRequest{
		OrderID: o.OrderID, PaymentID: "pay_1", Signature: SignOrder("wrong", o.OrderID, "pay_1"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)

	got := f.loadBooking(t, b.ID)
	assert.Equal(t, booking.StatusPending, got.BookingStatus)
	assert.Equal(t, booking.PaymentFailed, got.PaymentStatus)
	assert.Zero(t, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypePaymentFailed))

	// the gateway's own failure notice for the same order changes nothing
	require.NoError(t, f.webhook(t, paymentEvent("payment.failed", o.OrderID, "pay_1", b.TotalAmount)))
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypePaymentFailed))

	// a failed order does not block a fresh one
	retry, err := f.svc.CreateOrder(context.Background(), f.payer.ID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, o.OrderID, retry.OrderID)
}

func TestVerify_Errors(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)

	_, err := f.svc.Verify(context.Background(), f.owner.ID, VerifyRequest{OrderID: o.OrderID, PaymentID: "p", Signature: "s"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Verify(context.Background(), f.payer.ID, VerifyRequest{OrderID: "order_missing", PaymentID: "p", Signature: "s"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReconcile_VerifyThenWebhook(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	assert.True(t, f.verify(t, o.OrderID, "pay_1").Success)
	require.NoError(t, f.webhook(t, paymentEvent("payment.captured", o.OrderID, "pay_1", b.TotalAmount)))
	assert.True(t, f.verify(t, o.OrderID, "pay_1").Success)

	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
	assert.Equal(t, 1, f.notifier.count(f.owner.ID, notification.TypeBookingCreated))
}

func TestReconcile_WebhookThenVerify(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	require.NoError(t, f.webhook(t, paymentEvent("payment.captured", o.OrderID, "pay_1", b.TotalAmount)))
	assert.Equal(t, booking.StatusConfirmed, f.loadBooking(t, b.ID).BookingStatus)

	resp := f.verify(t, o.OrderID, "pay_1")
	assert.True(t, resp.Success)

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "upi", p.Method)

	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
	assert.Equal(t, 1, f.notifier.count(f.owner.ID, notification.TypeBookingCreated))
}

func TestReconcile_ConcurrentSignals(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)
	body := paymentEvent("payment.captured", o.OrderID, "pay_1", b.TotalAmount)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Verify(context.Background(), f.payer.ID, VerifyRequest{
				OrderID: o.OrderID, PaymentID: "pay_1", Signature: SignOrder(keySecret, o.OrderID, "pay_1"),
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.HandleWebhook(context.Background(), body, SignPayload(webhookSecret, body)))
		}()
	}
	wg.Wait()

	assert.Equal(t, booking.StatusConfirmed, f.loadBooking(t, b.ID).BookingStatus)
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
	assert.Equal(t, 1, f.notifier.count(f.owner.ID, notification.TypeBookingCreated))
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)
	body := paymentEvent("payment.captured", o.OrderID, "pay_1", b.TotalAmount)

	err := f.svc.HandleWebhook(context.Background(), body, SignPayload("guess", body))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, p.Status)
}

func TestWebhook_PaymentFailed(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	require.NoError(t, f.webhook(t, paymentEvent("payment.failed", o.OrderID, "pay_1", b.TotalAmount)))
	require.NoError(t, f.webhook(t, paymentEvent("payment.failed", o.OrderID, "pay_1", b.TotalAmount)))

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR", p.ErrorCode)

	got := f.loadBooking(t, b.ID)
	assert.Equal(t, booking.StatusPending, got.BookingStatus)
	assert.Equal(t, booking.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypePaymentFailed))

	// a late verify for the failed order does not resurrect it
	resp := f.verify(t, o.OrderID, "pay_1")
	assert.False(t, resp.Success)
	assert.Equal(t, booking.StatusPending, f.loadBooking(t, b.ID).BookingStatus)
}

func TestWebhook_AmountMismatchFailsOrder(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	require.NoError(t, f.webhook(t, paymentEvent("payment.captured", o.OrderID, "pay_1", b.TotalAmount-1)))

	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, booking.StatusPending, f.loadBooking(t, b.ID).BookingStatus)
	assert.Equal(t, booking.PaymentFailed, f.loadBooking(t, b.ID).PaymentStatus)
}

func TestWebhook_UnknownOrderAndEvent(t *testing.T) {
	f := setup(t)

	assert.NoError(t, f.webhook(t, paymentEvent("payment.captured", "order_nope", "pay_x", 100)))
	assert.NoError(t, f.webhook(t, []byte(`{"event":"order.paid","payload":{}}`)))
	assert.ErrorIs(t, f.webhook(t, []byte(`not json`)), apperr.ErrValidation)
}

func TestWebhook_Authorized(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	require.NoError(t, f.webhook(t, paymentEvent("payment.authorized", o.OrderID, "pay_1", b.TotalAmount)))
	p, err := f.payments.GetByOrderID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, p.Status)

	assert.True(t, f.verify(t, o.OrderID, "pay_1").Success)
}

func TestRefund_SecondAttemptRejected(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)
	f.verify(t, o.OrderID, "pay_1")

	p, err := f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "rain")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, p.Amount, p.RefundAmount)
	assert.Equal(t, "rfnd_1", p.RefundID)
	assert.Equal(t, "rain", p.RefundReason)
	assert.Equal(t, booking.PaymentRefunded, f.loadBooking(t, b.ID).PaymentStatus)
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeRefundProcessed))

	_, err = f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "rain")
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 1, f.gateway.refundCount())

	// the gateway's own refund notice is a no-op afterwards
	require.NoError(t, f.webhook(t, refundEvent("rfnd_1", "pay_1", p.Amount)))
	assert.Equal(t, 1, f.notifier.count(f.payer.ID, notification.TypeRefundProcessed))
}

func TestRefund_UpstreamFailureKeepsCaptured(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)
	f.verify(t, o.OrderID, "pay_1")

	f.gateway.refundErr = errors.New("gateway timeout")
	_, err := f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "rain")
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	p, err := f.payments.GetByID(context.Background(), o.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Nil(t, p.RefundRequestedAt)

	f.gateway.refundErr = nil
	p, err = f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "rain")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
}

func TestRefund_CallerGoneReleasesClaim(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)
	f.verify(t, o.OrderID, "pay_1")

	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.onRefund = func(context.Context) error {
		cancel()
		return context.Canceled
	}
	_, err := f.svc.Refund(ctx, f.payer.ID, o.PaymentID, 0, "rain")
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	p, err := f.payments.GetByID(context.Background(), o.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Nil(t, p.RefundRequestedAt)

	f.gateway.onRefund = nil
	p, err = f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "rain")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
}

func TestRefund_AbandonedClaimIsTakenOver(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)
	f.verify(t, o.OrderID, "pay_1")
	ctx := context.Background()

	require.NoError(t, f.db.Model(&Payment{}).Where("id = ?", o.PaymentID).
		Update("refund_requested_at", time.Now()).Error)
	_, err := f.svc.Refund(ctx, f.payer.ID, o.PaymentID, 0, "rain")
	assert.ErrorIs(t, err, ErrRefundInProgress)
	assert.Zero(t, f.gateway.refundCount())

	require.NoError(t, f.db.Model(&Payment{}).Where("id = ?", o.PaymentID).
		Update("refund_requested_at", time.Now().Add(-time.Hour)).Error)
	p, err := f.svc.Refund(ctx, f.payer.ID, o.PaymentID, 0, "rain")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, 1, f.gateway.refundCount())
}

func TestRefund_RulesOnRequesterAndAmount(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)

	_, err := f.svc.Refund(context.Background(), f.payer.ID, o.PaymentID, 0, "early")
	assert.ErrorIs(t, err, ErrNotRefundable)

	f.verify(t, o.OrderID, "pay_1")

	_, err = f.svc.Refund(context.Background(), "stranger", o.PaymentID, 0, "x")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Refund(context.Background(), f.owner.ID, o.PaymentID, o.Amount+1, "x")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	p, err := f.svc.Refund(context.Background(), f.owner.ID, o.PaymentID, 5000, "partial")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.RefundAmount)
	assert.Equal(t, int64(5000), f.gateway.refunds[0].Amount)
	assert.Equal(t, "pay_1", f.gateway.refunds[0].PaymentID)
}

func TestCapture_CancelledBookingIsRefunded(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	_, err := f.bookings.Cancel(context.Background(), b.ID, f.payer.ID, "changed plans")
	require.NoError(t, err)

	resp := f.verify(t, o.OrderID, "pay_1")
	assert.False(t, resp.Success)
	assert.Equal(t, StatusRefunded, resp.Status)

	require.Equal(t, 1, f.gateway.refundCount())
	assert.Equal(t, inactiveBookingRefundReason, f.gateway.refunds[0].Reason)

	got := f.loadBooking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.BookingStatus)
	assert.Equal(t, booking.PaymentRefunded, got.PaymentStatus)
	assert.Zero(t, f.notifier.count(f.payer.ID, notification.TypeBookingConfirmed))
}

func TestCancel_PaidBookingIsRefunded(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)
	f.verify(t, o.OrderID, "pay_1")

	_, err := f.bookings.Cancel(context.Background(), b.ID, f.payer.ID, "injury")
	require.NoError(t, err)

	p, err := f.payments.GetByID(context.Background(), o.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, "injury", p.RefundReason)
	assert.Equal(t, booking.PaymentRefunded, f.loadBooking(t, b.ID).PaymentStatus)
}

func TestCancel_CaptureDuringCancelIsRefunded(t *testing.T) {
	f := setup(t)
	b, o := f.order(t)

	// the capture commits right after cancel has read the booking
	var armed atomic.Bool
	armed.Store(true)
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:capture_mid_cancel", func(tx *gorm.DB) {
		if tx.Statement.Table == "bookings" && armed.CompareAndSwap(true, false) {
			f.verify(t, o.OrderID, "pay_1")
		}
	}))

	_, err := f.bookings.Cancel(context.Background(), b.ID, f.payer.ID, "injury")
	require.NoError(t, err)
	assert.False(t, armed.Load())

	got := f.loadBooking(t, b.ID)
	assert.Equal(t, booking.StatusCancelled, got.BookingStatus)
	assert.Equal(t, booking.PaymentRefunded, got.PaymentStatus)

	p, err := f.payments.GetByID(context.Background(), o.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, 1, f.gateway.refundCount())
}

func TestGet(t *testing.T) {
	f := setup(t)
	_, o := f.order(t)

	p, err := f.svc.Get(context.Background(), o.PaymentID, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, p.OrderID)

	_, err = f.svc.Get(context.Background(), o.PaymentID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
}
