package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	code := e.Code
	if e.Reason != "" {
		code = e.Code + "/" + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// InvalidState reports an operation that is not allowed in the current
// room or player state. reason is one of the Reason* constants.
func InvalidState(reason, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidState,
		Reason:  reason,
		Message: message,
	}
}

func AlreadyAnswered(message string) *AppError {
	return New(ErrCodeAlreadyAnswered, message)
}

func NoQuestions(message string) *AppError {
	return New(ErrCodeNoQuestions, message)
}

func Validation(message string, err error) *AppError {
	return Wrap(err, ErrCodeValidation, message)
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

func ReasonOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// MessageOf returns the client-facing message of the first AppError in
// err's chain, falling back to err.Error().
func MessageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeAlreadyAnswered   = "ALREADY_ANSWERED"
	ErrCodeNoQuestions       = "NO_QUESTIONS"
)

// Invalid state reasons
const (
	ReasonRoomNotInLobby     = "ROOM_NOT_IN_LOBBY"
	ReasonRoomFull           = "ROOM_FULL"
	ReasonNicknameTaken      = "NICKNAME_TAKEN"
	ReasonGameAlreadyStarted = "GAME_ALREADY_STARTED"
	ReasonNotHost            = "NOT_HOST"
	ReasonNoActiveQuestion   = "NO_ACTIVE_QUESTION"
	ReasonQuestionNotActive  = "QUESTION_NOT_ACTIVE"
	ReasonPlayerNotInRoom    = "PLAYER_NOT_IN_ROOM"
	ReasonInvalidOption      = "INVALID_OPTION"
	ReasonCategoryRequired   = "CATEGORY_REQUIRED"
	ReasonGameNotInProgress  = "GAME_NOT_IN_PROGRESS"
	ReasonThemeBasedRoom     = "THEME_BASED_ROOM"
)
