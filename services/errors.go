package services

import "errors"

// Kinds. Every error returned by the services wraps exactly one of these, and
// the HTTP layer maps on the kind.
var (
	ErrNotFound            = errors.New("requested resource not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("conflict")
	ErrFull                = errors.New("capacity reached")
	ErrInvalidState        = errors.New("operation not allowed in the current state")
	ErrInsufficientPlayers = errors.New("not enough players to generate matches")
	ErrUpdateFailed        = errors.New("update affected no rows")
	ErrForbiddenOperation  = errors.New("operation not allowed for the current user")
)

// Не найдено
var (
	ErrUserNotFound        = newKindError(ErrNotFound, "user not found")
	ErrTournamentNotFound  = newKindError(ErrNotFound, "tournament not found")
	ErrParticipantNotFound = newKindError(ErrNotFound, "participant not found in this tournament")
	ErrMatchNotFound       = newKindError(ErrNotFound, "match not found")
	ErrMatchPlayersUnknown = newKindError(ErrNotFound, "match players could not be resolved")
)

// Валидация
var (
	ErrTournamentNameTooShort  = newKindError(ErrInvalidArgument, "tournament name must be at least 3 characters")
	ErrInvalidPlayerLimits     = newKindError(ErrInvalidArgument, "min_players must be at least 2 and max_players at least min_players")
	ErrAliasRequired           = newKindError(ErrInvalidArgument, "alias is required")
	ErrAliasTooLong            = newKindError(ErrInvalidArgument, "alias must be at most 20 characters")
	ErrInvalidScore            = newKindError(ErrInvalidArgument, "scores must not be negative")
	ErrDrawNotAllowed          = newKindError(ErrInvalidArgument, "tournament matches cannot end in a draw")
	ErrInvalidTournamentStatus = newKindError(ErrInvalidArgument, "invalid tournament status")
)

// Конфликты и состояние
var (
	ErrAliasConflict        = newKindError(ErrConflict, "alias is already taken in this tournament")
	ErrTournamentFull       = newKindError(ErrFull, "tournament is full")
	ErrTournamentNotPending = newKindError(ErrInvalidState, "tournament has already started")
	ErrTournamentFinished   = newKindError(ErrInvalidState, "tournament is already finished")
	ErrMatchAlreadyRecorded = newKindError(ErrInvalidState, "match result already recorded")
	ErrCreatorOnly          = newKindError(ErrForbiddenOperation, "only the tournament creator can perform this action")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
