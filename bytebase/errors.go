package bytebase

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the service answers 200 without the
// payload the operation expects.
var ErrMalformedResponse = errors.New("bytebase: malformed response")

// RemoteServiceError is returned when the service answers with a non-200
// status or an explicit error message.
type RemoteServiceError struct {
	// Op is the operation that failed, e.g. "create sheets".
	Op string

	// StatusCode is the HTTP status the service answered with.
	StatusCode int

	// Message is the server-provided error text, if any.
	Message string
}

// Error implements the error interface.
func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("failed to %s, %d, %s", e.Op, e.StatusCode, e.Message)
}
