package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
	ErrUpstreamUnavailable = fmt.Errorf("upstream catalog unavailable")
	ErrForbidden           = fmt.Errorf("insufficient permissions")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")

	// Sorting errors
	ErrMalformedDate         = fmt.Errorf("malformed release date")
	ErrEmptyPlaylist         = fmt.Errorf("playlist is empty or contains no valid tracks")
	ErrNoValidDates          = fmt.Errorf("no valid release dates found")
	ErrPartialReconciliation = fmt.Errorf("playlist partially reordered")
	ErrInvalidTransition     = fmt.Errorf("invalid sort state transition")
	ErrRunNotFound           = fmt.Errorf("sort run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// PartialReconciliationError reports a write-back that stopped after some batches were already applied.
//
// The remote playlist holds the first Applied batches of the target order and nothing after them.
type PartialReconciliationError struct {
	Applied int   // Batches applied successfully
	Total   int   // Batches in the plan
	Err     error // Failure that stopped the write-back
}

func (e *PartialReconciliationError) Error() string {
	return fmt.Sprintf("%v: %d of %d batches applied: %v", ErrPartialReconciliation, e.Applied, e.Total, e.Err)
}

func (e *PartialReconciliationError) Unwrap() []error {
	return []error{ErrPartialReconciliation, e.Err}
}

// IsPartial reports whether err left the remote playlist partially updated.
func IsPartial(err error) bool {
	var pe *PartialReconciliationError
	return errors.As(err, &pe)
}
