package booking

import (
	"context"

	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
)

type BoxReader interface {
	GetByID(ctx context.Context, id string) (*catalog.CricketBox, error)
	IncrementTotalBookings(ctx context.Context, id string) error
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

// RefundRequester returns a booking's captured payment to the payer.
type RefundRequester interface {
	RefundForBooking(ctx context.Context, bookingID, reason string) error
}
