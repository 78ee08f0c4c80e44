package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kanban-board/domain"
)

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Message returns the response body without surrounding whitespace, or the
// status text when the body is empty.
func (e *APIError) Message() string {
	if msg := strings.TrimSpace(e.Body); msg != "" {
		return msg
	}
	return http.StatusText(e.StatusCode)
}

// classify maps a failed call onto the domain error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusConflict:
			return &domain.ConflictError{Op: op, Reason: apiErr.Message(), Err: apiErr}
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return &domain.TransientNetworkError{Op: op, Err: apiErr}
		default:
			return &domain.ValidationError{Op: op, Reason: apiErr.Message(), Err: apiErr}
		}
	}
	return &domain.TransientNetworkError{Op: op, Err: err}
}
