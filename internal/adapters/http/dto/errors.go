// Package dto holds the JSON shapes of the quote API: request bodies,
// responses and the error envelope domain errors are mapped onto.
package dto

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// traceIDKey lets a handler pin the trace ID reported in envelopes.
const traceIDKey = "trace_id"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail carries a stable code, a readable message and, for field or
// item errors, the offending keys.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes.
const (
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeConflict      = "CONFLICT"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeInvalidFormat = "INVALID_FORMAT"
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeUnavailable   = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout       = "TIMEOUT"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	ErrorCodeNotFound:      http.StatusNotFound,
	ErrorCodeConflict:      http.StatusConflict,
	ErrorCodeValidation:    http.StatusBadRequest,
	ErrorCodeInvalidFormat: http.StatusBadRequest,
	ErrorCodeBadRequest:    http.StatusBadRequest,
	ErrorCodeUnavailable:   http.StatusServiceUnavailable,
	ErrorCodeTimeout:       http.StatusGatewayTimeout,
	ErrorCodeInternal:      http.StatusInternalServerError,
}

// StatusOf returns the HTTP status for an error code. Unknown codes are 500.
func StatusOf(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

func envelope(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// MapError converts err into an envelope. Errors the domain does not
// classify are reported as a generic internal error so nothing leaks.
func MapError(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	var (
		dup         *domain.DuplicateError
		invalid     *domain.InvalidFormatError
		field       *domain.ValidationError
		unavailable *domain.UnavailableError
	)

	msg := err.Error()

	switch {
	case errors.As(err, &dup):
		return envelope(ErrorCodeConflict, msg, map[string]string{"position": strconv.Itoa(dup.Position)})
	case domain.IsConflict(err):
		return envelope(ErrorCodeConflict, msg, nil)
	case domain.IsNotFound(err):
		return envelope(ErrorCodeNotFound, msg, nil)
	case errors.As(err, &invalid):
		if invalid.Index < 0 {
			return envelope(ErrorCodeInvalidFormat, msg, nil)
		}

		return envelope(ErrorCodeInvalidFormat, msg, map[string]string{"index": strconv.Itoa(invalid.Index)})
	case errors.As(err, &field) && field.Field != "":
		return envelope(ErrorCodeValidation, msg, map[string]string{field.Field: field.Message})
	case domain.IsValidation(err):
		return envelope(ErrorCodeValidation, msg, nil)
	case errors.As(err, &unavailable):
		return envelope(ErrorCodeUnavailable, unavailable.Service+" temporarily unavailable", nil)
	case domain.IsUnavailable(err):
		return envelope(ErrorCodeUnavailable, "service temporarily unavailable", nil)
	default:
		return envelope(ErrorCodeInternal, "an internal error occurred", nil)
	}
}

// TraceID picks the ID reported in envelopes: a pinned "trace_id" value,
// then the active span, then X-Request-ID.
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		s, _ := v.(string)
		return s
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return c.GetHeader("X-Request-ID")
}

// Fail aborts the request with an envelope whose status follows code.
func Fail(c *gin.Context, code, message string, details map[string]string) {
	write(c, envelope(code, message, details))
}

// HandleError aborts the request with the envelope MapError builds for err.
func HandleError(c *gin.Context, err error) {
	write(c, MapError(err))
}

func write(c *gin.Context, resp *ErrorResponse) {
	resp.TraceID = TraceID(c)
	c.AbortWithStatusJSON(StatusOf(resp.Error.Code), resp)
}
