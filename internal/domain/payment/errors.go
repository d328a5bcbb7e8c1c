package payment

import "github.com/sarvangi2609/criczz/internal/apperr"

var (
	ErrPaymentNotFound  = apperr.New(apperr.ErrNotFound, "PAYMENT_NOT_FOUND", "payment not found")
	ErrForbidden        = apperr.New(apperr.ErrForbidden, "FORBIDDEN", "not allowed to act on this payment")
	ErrAlreadyPaid      = apperr.New(apperr.ErrInvalidState, "ALREADY_PAID", "booking already paid")
	ErrNotPayable       = apperr.New(apperr.ErrInvalidState, "BOOKING_NOT_PAYABLE", "booking is not awaiting payment")
	ErrAlreadyRefunded  = apperr.New(apperr.ErrInvalidState, "ALREADY_REFUNDED", "payment already refunded")
	ErrNotRefundable    = apperr.New(apperr.ErrInvalidState, "NOT_REFUNDABLE", "payment cannot be refunded")
	ErrRefundInProgress = apperr.New(apperr.ErrConflict, "REFUND_IN_PROGRESS", "a refund for this payment is in progress")
	ErrDuplicatePayment = apperr.New(apperr.ErrConflict, "PAYMENT_EXISTS", "booking already has a live payment")
	ErrInvalidAmount    = apperr.New(apperr.ErrValidation, "INVALID_REFUND_AMOUNT", "refund amount must be between 1 and the captured amount")
	ErrInvalidSignature = apperr.New(apperr.ErrSignatureInvalid, "INVALID_SIGNATURE", "invalid signature")
	ErrInvalidPayload   = apperr.New(apperr.ErrValidation, "INVALID_PAYLOAD", "malformed webhook payload")
)
