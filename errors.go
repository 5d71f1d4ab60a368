package signalkkit

import (
	"errors"
	"fmt"
)

var (
	ErrNoServerConfigured = errors.New("no server configured")
	ErrNotConnected       = errors.New("not connected")
	ErrNoAccessToken      = errors.New("no access token")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidResponse    = errors.New("invalid response")
)

// HTTPError reports a control-plane response with a non-success status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string { return fmt.Sprintf("http status %d", e.StatusCode) }
