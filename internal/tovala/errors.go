package tovala

import (
	"errors"
	"fmt"
)

// Domain errors for the upstream API. ErrInvalidCredentials and ErrRateLimited
// are terminal during login: no further endpoints are tried once either is
// observed. ErrConnectionFailed is retried across candidate endpoints during
// login and surfaced everywhere else.
var (
	ErrMissingCredentials = errors.New("missing credentials: need a token or an email/password pair")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrNotFound           = errors.New("not found")
	ErrNotAuthenticated   = errors.New("no user id resolved, login first")
)

// APIError is an upstream HTTP failure other than 404, carrying the status
// code and response body for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tovala api: HTTP %d: %s", e.Status, e.Body)
}

// connFailed wraps a transport-level error so callers can match it with
// errors.Is(err, ErrConnectionFailed).
func connFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
