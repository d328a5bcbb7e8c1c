package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
)

const (
	dateLayout         = "2006-01-02"
	holdReleaseReason  = "payment window expired"
	holdReleaseBatch   = 200
	relatedTypeBooking = "booking"
)

type Options struct {
	Pricing            Pricing
	HoldTTL            time.Duration
	CancellationWindow time.Duration
	Location           *time.Location
}

type ReserveRequest struct {
	BoxID          string
	Date           string
	StartTime      string
	EndTime        string
	PayerID        string
	Kind           Type
	DiscountAmount int64
	Notes          string
	MatchRequestID *string
}

type OfflineRequest struct {
	BoxID           string
	Date            string
	StartTime       string
	EndTime         string
	CustomerName    string
	CustomerPhone   string
	AmountCollected int64
	Notes           string
}

type Service struct {
	bookings *Repository
	boxes    BoxReader
	users    UserReader
	notifier Notifier
	refunds  RefundRequester
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

func NewService(bookings *Repository, boxes BoxReader, users UserReader, notifier Notifier, opts Options, log *zap.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		bookings: bookings,
		boxes:    boxes,
		users:    users,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// SetRefundRequester wires the payment side, which is built after bookings.
func (s *Service) SetRefundRequester(r RefundRequester) {
	s.refunds = r
}

// ListAvailable lays the box's slot grid for date over the bookings that
// currently hold slots.
func (s *Service) ListAvailable(ctx context.Context, boxID, date string) (*Availability, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.opts.Location)
	if err != nil {
		return nil, ErrInvalidDate
	}
	box, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, err
	}
	grid, err := box.Grid()
	if err != nil {
		return nil, err
	}
	holding, err := s.bookings.HoldingForDate(ctx, boxID, date)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]string, len(holding))
	for _, b := range holding {
		taken[b.StartTime] = b.ID
	}

	price := box.SlotPrice(day)
	slots := make([]SlotView, 0, len(grid))
	for _, g := range grid {
		v := SlotView{StartTime: g.Start, EndTime: g.End, Price: price, IsAvailable: true}
		if id, ok := taken[g.Start]; ok {
			v.IsAvailable = false
			v.BookingID = &id
		}
		slots = append(slots, v)
	}

	wd := day.Weekday()
	return &Availability{
		BoxID:   box.ID,
		BoxName: box.Name,
		Date:    date,
		Weekend: wd == time.Saturday || wd == time.Sunday,
		Slots:   slots,
	}, nil
}

// Reserve atomically takes one slot. Online bookings start pending and
// wait for payment; offline bookings are confirmed and paid at once.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	if req.Kind == "" {
		req.Kind = TypeOnline
	}
	if req.Kind != TypeOnline && req.Kind != TypeOffline {
		return nil, apperr.Validation("invalid booking type", map[string]string{"booking_type": "must be online or offline"})
	}

	box, day, err := s.bookableSlot(ctx, req.BoxID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	payer, err := s.users.GetByID(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}

	price, err := s.opts.Pricing.Breakdown(box.SlotPrice(day), req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	b := s.newBooking(box, req.Date, req.StartTime, req.EndTime, req.Kind, price)
	b.PayerID = payer.ID
	b.PayerName = payer.Name
	b.PayerPhone = payer.Phone
	b.UserNotes = req.Notes
	b.MatchRequestID = req.MatchRequestID

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("slot reserved",
		zap.String("booking_id", b.ID),
		zap.String("booking_number", b.BookingNumber),
		zap.String("box_id", b.BoxID),
		zap.String("payer_id", b.PayerID),
		zap.String("date", b.SlotDate),
		zap.String("start", b.StartTime),
		zap.String("type", string(b.BookingType)),
	)

	if b.BookingType == TypeOffline {
		s.countBooking(ctx, box.ID)
	}
	return b, nil
}

// CreateOffline records a walk-in booking taken by the box owner. The
// amount collected in person is both base and total.
func (s *Service) CreateOffline(ctx context.Context, ownerID string, req OfflineRequest) (*Booking, error) {
	if req.AmountCollected < 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, apperr.Validation("customer name is required", map[string]string{"customer_name": "required"})
	}

	box, _, err := s.bookableSlot(ctx, req.BoxID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if box.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	price := Breakdown{Base: req.AmountCollected, Total: req.AmountCollected}
	b := s.newBooking(box, req.Date, req.StartTime, req.EndTime, TypeOffline, price)
	b.PayerID = ownerID
	b.PayerName = req.CustomerName
	b.PayerPhone = req.CustomerPhone
	b.OwnerNotes = req.Notes

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("offline booking created",
		zap.String("booking_id", b.ID),
		zap.String("box_id", b.BoxID),
		zap.String("owner_id", ownerID),
		zap.Int64("amount", b.TotalAmount),
	)
	s.countBooking(ctx, box.ID)
	return b, nil
}

func (s *Service) newBooking(box *catalog.CricketBox, date, start, end string, kind Type, price Breakdown) *Booking {
	now := s.now()
	b := &Booking{
		ID:              uuid.NewString(),
		BookingNumber:   bookingNumber(now),
		BoxID:           box.ID,
		BoxName:         box.Name,
		OwnerID:         box.OwnerID,
		SlotDate:        date,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: box.SlotDurationMinutes,
		BaseAmount:      price.Base,
		PlatformFee:     price.Fee,
		TaxAmount:       price.Tax,
		DiscountAmount:  price.Discount,
		TotalAmount:     price.Total,
		PaymentStatus:   PaymentPending,
		BookingStatus:   StatusPending,
		BookingType:     kind,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if kind == TypeOffline {
		b.PaymentStatus = PaymentPaid
		b.BookingStatus = StatusConfirmed
		b.PaidAt = &now
	}
	return b
}

// bookableSlot checks the box takes bookings and start-end is one future
// slot of its grid on date.
func (s *Service) bookableSlot(ctx context.Context, boxID, date, start, end string) (*catalog.CricketBox, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.opts.Location)
	if err != nil {
		return nil, time.Time{}, ErrInvalidDate
	}
	box, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !box.IsActive {
		return nil, time.Time{}, catalog.ErrBoxInactive
	}
	if !box.OnGrid(start, end) {
		return nil, time.Time{}, ErrInvalidSlot
	}
	startsAt, err := time.ParseInLocation(dateLayout+" 15:04", date+" "+start, s.opts.Location)
	if err != nil {
		return nil, time.Time{}, ErrInvalidSlot
	}
	if !startsAt.After(s.now()) {
		return nil, time.Time{}, ErrSlotInPast
	}
	return box, day, nil
}

func (s *Service) countBooking(ctx context.Context, boxID string) {
	if err := s.boxes.IncrementTotalBookings(ctx, boxID); err != nil {
		s.log.Error("increment box bookings", zap.String("box_id", boxID), zap.Error(err))
	}
}

// Cancel releases the slot. The payer or the box owner may cancel while
// the booking is pending or confirmed. A captured payment is refunded in
// full when the box's cancellation window has not yet been reached.
func (s *Service) Cancel(ctx context.Context, bookingID, requesterID, reason string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	byPayer := b.PayerID == requesterID
	byOwner := b.OwnerID == requesterID
	if !byPayer && !byOwner {
		return nil, ErrForbidden
	}
	if !b.BookingStatus.CanTransitionTo(StatusCancelled) {
		return nil, ErrInvalidStatus
	}

	now := s.now()
	cancelled, ok, err := s.bookings.Cancel(ctx, b.ID, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race with another transition
		return nil, ErrInvalidStatus
	}
	// a capture may have landed since the first read
	b = cancelled

	s.log.Info("booking cancelled",
		zap.String("booking_id", b.ID),
		zap.String("requester_id", requesterID),
		zap.String("reason", reason),
	)

	if b.PaymentStatus == PaymentPaid && b.BookingType == TypeOnline {
		s.refundOnCancel(ctx, b, reason, now)
	}

	msg := notification.Message{
		Type:        notification.TypeBookingCancelled,
		Title:       "Booking Cancelled",
		Body:        fmt.Sprintf("Booking %s for %s %s at %s was cancelled", b.BookingNumber, b.SlotDate, b.StartTime, b.BoxName),
		RelatedID:   b.ID,
		RelatedType: relatedTypeBooking,
	}
	if byPayer && b.OwnerID != b.PayerID {
		msg.UserID = b.OwnerID
		s.notify(ctx, msg)
	}
	if byOwner && b.OwnerID != b.PayerID {
		msg.UserID = b.PayerID
		s.notify(ctx, msg)
	}

	return s.bookings.GetByID(ctx, b.ID)
}

func (s *Service) refundOnCancel(ctx context.Context, b *Booking, reason string, now time.Time) {
	if s.refunds == nil {
		return
	}
	startsAt, err := b.StartsAt(s.opts.Location)
	if err != nil {
		s.log.Error("parse booking start", zap.String("booking_id", b.ID), zap.Error(err))
		return
	}

	window := s.opts.CancellationWindow
	if box, err := s.boxes.GetByID(ctx, b.BoxID); err == nil {
		window = box.CancellationWindow(window)
	}
	if !now.Before(startsAt.Add(-window)) {
		s.log.Info("cancellation window passed, no refund",
			zap.String("booking_id", b.ID),
			zap.Duration("window", window),
		)
		return
	}

	if reason == "" {
		reason = "booking cancelled"
	}
	if err := s.refunds.RefundForBooking(ctx, b.ID, reason); err != nil {
		s.log.Error("refund on cancel failed", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

// Get returns a booking to its payer or the box owner.
func (s *Service) Get(ctx context.Context, bookingID, requesterID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PayerID != requesterID && b.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) ListForPayer(ctx context.Context, payerID string, f ListFilters) ([]Booking, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.bookings.ListByPayer(ctx, payerID, f)
}

func (s *Service) ListForBox(ctx context.Context, ownerID, boxID string, f ListFilters) ([]Booking, int64, error) {
	box, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, 0, err
	}
	if box.OwnerID != ownerID {
		return nil, 0, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.bookings.ListByBox(ctx, boxID, f)
}

// MarkNoShow is the owner's terminal mark for a confirmed booking whose
// slot started without the payer.
func (s *Service) MarkNoShow(ctx context.Context, ownerID, bookingID, note string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if !b.BookingStatus.CanTransitionTo(StatusNoShow) {
		return nil, ErrInvalidStatus
	}
	startsAt, err := b.StartsAt(s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("parse booking start: %w", err)
	}
	if s.now().Before(startsAt) {
		return nil, ErrNotStarted
	}

	ok, err := s.bookings.MarkNoShow(ctx, b.ID, note, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidStatus
	}
	return s.bookings.GetByID(ctx, b.ID)
}

// CompleteElapsed moves confirmed bookings whose slot has ended to completed.
func (s *Service) CompleteElapsed(ctx context.Context) (int64, error) {
	now := s.now().In(s.opts.Location)
	n, err := s.bookings.CompleteElapsed(ctx, now.Format(dateLayout), now.Format("15:04"), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("bookings completed", zap.Int64("count", n))
	}
	return n, nil
}

// ReleaseExpiredHolds cancels online bookings left unpaid past the hold
// window, freeing their slots.
func (s *Service) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.bookings.ExpiredHolds(ctx, now.Add(-s.opts.HoldTTL), holdReleaseBatch)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, b := range expired {
		ok, err := s.bookings.ReleaseHold(ctx, b.ID, holdReleaseReason, now)
		if err != nil {
			return released, err
		}
		if !ok {
			continue
		}
		released++
		s.log.Info("hold released", zap.String("booking_id", b.ID), zap.String("payer_id", b.PayerID))
		s.notify(ctx, notification.Message{
			UserID:      b.PayerID,
			Type:        notification.TypeBookingCancelled,
			Title:       "Booking Released",
			Body:        fmt.Sprintf("Booking %s was released because payment was not completed in time", b.BookingNumber),
			RelatedID:   b.ID,
			RelatedType: relatedTypeBooking,
		})
	}
	return released, nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Error("notify", zap.String("user_id", msg.UserID), zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// bookingNumber formats CBK-YYYYMMDD-XXXXXX.
func bookingNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("CBK-%s-%s", at.Format("20060102"), suffix)
}
