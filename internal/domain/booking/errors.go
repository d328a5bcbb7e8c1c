package booking

import "github.com/sarvangi2609/criczz/internal/apperr"

var (
	ErrBookingNotFound = apperr.New(apperr.ErrNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrSlotTaken       = apperr.New(apperr.ErrConflict, "SLOT_TAKEN", "slot is already booked")
	ErrForbidden       = apperr.New(apperr.ErrForbidden, "FORBIDDEN", "not allowed to act on this booking")
	ErrInvalidStatus   = apperr.New(apperr.ErrInvalidState, "INVALID_STATUS_TRANSITION", "booking status does not allow this action")
	ErrInvalidSlot     = apperr.New(apperr.ErrValidation, "INVALID_SLOT", "slot is not on the box schedule")
	ErrSlotInPast      = apperr.New(apperr.ErrValidation, "SLOT_IN_PAST", "slot has already started")
	ErrInvalidDate     = apperr.New(apperr.ErrValidation, "INVALID_DATE", "date must be YYYY-MM-DD")
	ErrInvalidAmount   = apperr.New(apperr.ErrValidation, "INVALID_AMOUNT", "invalid amount")
	ErrNotStarted      = apperr.New(apperr.ErrInvalidState, "SLOT_NOT_STARTED", "slot has not started yet")
)
