package match

import "github.com/sarvangi2609/criczz/internal/apperr"

var (
	ErrMatchNotFound     = apperr.New(apperr.ErrNotFound, "MATCH_REQUEST_NOT_FOUND", "match request not found")
	ErrJoinNotFound      = apperr.New(apperr.ErrNotFound, "JOIN_REQUEST_NOT_FOUND", "join request not found")
	ErrNotOpen           = apperr.New(apperr.ErrInvalidState, "MATCH_NOT_OPEN", "this match request is no longer accepting players")
	ErrJoinNotPending    = apperr.New(apperr.ErrInvalidState, "JOIN_NOT_PENDING", "join request was already answered")
	ErrFull              = apperr.New(apperr.ErrInvalidState, "MATCH_FULL", "all spots are taken")
	ErrOwnRequest        = apperr.New(apperr.ErrForbidden, "OWN_REQUEST", "you cannot join your own request")
	ErrNotCreator        = apperr.New(apperr.ErrForbidden, "NOT_CREATOR", "only the creator can do this")
	ErrAlreadyRequested  = apperr.New(apperr.ErrConflict, "ALREADY_REQUESTED", "you have already requested to join")
	ErrAlreadyAccepted   = apperr.New(apperr.ErrConflict, "ALREADY_ACCEPTED", "you are already part of this match")
	ErrConcurrentUpdate  = apperr.New(apperr.ErrConflict, "CONCURRENT_UPDATE", "match request changed, try again")
	ErrMatchDateInPast   = apperr.New(apperr.ErrValidation, "MATCH_DATE_IN_PAST", "match date has passed")
	ErrBelowJoined       = apperr.New(apperr.ErrInvalidState, "PLAYERS_BELOW_JOINED", "players needed cannot drop below players already accepted")
	ErrInvalidTimeWindow = apperr.New(apperr.ErrValidation, "INVALID_TIME_WINDOW", "start and end time must be given together and start before end")
)
