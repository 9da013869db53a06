package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/http/middleware"
	"github.com/tbourn/go-loyalty-backend/internal/services"
)

// Error codes carried in ErrorResponse.Code. Clients branch on these, not on
// messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// ledger and staff rules
	ErrCodeInvalidCode    = "invalid_code"
	ErrCodeDuplicateVisit = "duplicate_visit"
	ErrCodeInvalidPhoto   = "invalid_photo"
)

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"duplicate_visit"`
	Message   string `json:"message" example:"visit already recorded today"`
}

// serviceError maps a service sentinel onto a status and code. An empty msg
// means the error text itself is safe to return.
type serviceError struct {
	target error
	status int
	code   string
	msg    string
}

var serviceErrors = []serviceError{
	{services.ErrInvalidCode, http.StatusBadRequest, ErrCodeInvalidCode, "invalid venue code"},
	{services.ErrInvalidPhoto, http.StatusBadRequest, ErrCodeInvalidPhoto, ""},
	{services.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrDuplicateVisit, http.StatusBadRequest, ErrCodeDuplicateVisit, "visit already recorded today"},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "user not found"},
	{services.ErrStaffNotFound, http.StatusNotFound, ErrCodeNotFound, "staff member not found"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid login or password"},
	{services.ErrSessionNotFound, http.StatusUnauthorized, ErrCodeUnauthorized, "session expired or unknown"},
}

// fail aborts with the error envelope. 5xx responses are also logged through
// the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService translates err into a response. Unknown errors become a
// generic 500; the cause goes to c.Errors for the access log only.
func failService(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return
	}
	for _, se := range serviceErrors {
		if !errors.Is(err, se.target) {
			continue
		}
		msg := se.msg
		if msg == "" {
			msg = err.Error()
		}
		fail(c, se.status, se.code, msg)
		return
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
