package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ctf-quiz-service/internal/domain"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// errorMapping is checked in order: specific errors before their kinds.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrQuizClosed, http.StatusForbidden, "quiz_closed"},
	{domain.ErrAlreadyAnswered, http.StatusConflict, "already_answered"},
	{domain.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrSessionNotOwned, http.StatusForbidden, "session_not_owned"},
	{domain.ErrSelfDelete, http.StatusForbidden, "self_delete"},
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the error envelope. Store and unknown failures are
// logged and reported without internal detail.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "request_id", requestID(c), "error", err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

func badRequest(msg string) error {
	return domain.Invalid("%s", msg)
}
