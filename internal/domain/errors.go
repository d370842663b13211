package domain

import (
	"errors"
	"fmt"
)

// ErrNoOffers means the provider answered but no offer carried a usable total price.
var ErrNoOffers = errors.New("provider returned no priced offers")

// AuthConfigError is fatal: the provider credentials are not configured.
type AuthConfigError struct {
	Missing []string
}

func (e *AuthConfigError) Error() string {
	return fmt.Sprintf("provider credentials are not configured: missing %v", e.Missing)
}

// AuthTransportError covers an unreachable or rejecting token endpoint and a
// search call that stays unauthorized after re-authentication.
type AuthTransportError struct {
	Status int
	Err    error
}

func (e *AuthTransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider authentication failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider authentication failed: %v", e.Err)
}

func (e *AuthTransportError) Unwrap() error { return e.Err }

type UpstreamError struct {
	Status      int
	RateLimited bool
	Err         error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.RateLimited:
		return fmt.Sprintf("provider rate limit exceeded: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("provider call failed with status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("provider call failed: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsBreakerFailure reports whether err should count against the provider's circuit.
func IsBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	var (
		authErr     *AuthTransportError
		upstreamErr *UpstreamError
	)
	return errors.Is(err, ErrNoOffers) || errors.As(err, &authErr) || errors.As(err, &upstreamErr)
}
