package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// maxErrorBody bounds how much of a failed response is read for a message.
const maxErrorBody = 4 << 10

// remoteFailure is whatever a failed response body told us. The posts API
// usually sends nothing useful; gateways in front of it may send either a
// flat {message} or a nested {error:{message,details}} body.
type remoteFailure struct {
	Message string `json:"message"`
	Error   struct {
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func readFailure(body io.Reader) remoteFailure {
	var f remoteFailure

	if body != nil {
		_ = json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&f)
	}

	return f
}

func (f remoteFailure) message() string {
	if f.Error.Message != "" {
		return f.Error.Message
	}

	return f.Message
}

// mapFailure turns a failed exchange with the remote into a domain error.
// Exactly one of resp and err is expected to be set.
func mapFailure(service, operation string, resp *http.Response, err error) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUnavailableError(service, "circuit breaker open during "+operation)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.NewUnavailableError(service, "max retries exceeded during "+operation)
	case err != nil:
		return domain.NewUnavailableError(service, fmt.Sprintf("%s failed: %v", operation, err))
	case resp == nil:
		return domain.NewUnavailableError(service, "no response received")
	}

	f := readFailure(resp.Body)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		for field, msg := range f.Error.Details {
			return domain.NewValidationError(field, msg)
		}

		return domain.NewValidationError("", orDefault(f.message(), "remote rejected "+operation))
	case http.StatusTooManyRequests:
		return domain.NewUnavailableError(service, "rate limit exceeded")
	case http.StatusNotFound:
		return domain.NewUnavailableError(service, operation+" endpoint not found")
	default:
		return domain.NewUnavailableError(service,
			orDefault(f.message(), fmt.Sprintf("%s failed with status %d", operation, resp.StatusCode)))
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
