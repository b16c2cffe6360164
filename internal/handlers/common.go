package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/trivia_arena/pkg/errors"
)

type ErrorResponse struct {
	Error  string `json:"error" example:"room is not accepting players"`
	Code   string `json:"code" example:"INVALID_STATE"`
	Reason string `json:"reason,omitempty" example:"ROOM_NOT_IN_LOBBY"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// statusFor maps an application error code to the HTTP status returned for it.
func statusFor(code string) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyAnswered, errors.ErrCodeAlreadyExists:
		return http.StatusConflict
	case errors.ErrCodeNoQuestions:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeInvalidState, errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	_ = c.Error(err)

	msg := errors.MessageOf(err)
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code, Reason: errors.ReasonOf(err)})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: errors.ErrCodeValidation})
}

func roomCode(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}
