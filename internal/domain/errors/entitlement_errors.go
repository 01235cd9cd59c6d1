package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmappedCustomer indicates an event referenced a provider customer
	// id with no local user row. Retryable: the provider's own redelivery
	// schedule is expected to resolve it once the mapping propagates.
	ErrUnmappedCustomer = errors.New("no user mapped to provider customer")

	// ErrUnhandledEvent indicates a provider event type outside the
	// normalized vocabulary. Not a failure; deliveries are acknowledged.
	ErrUnhandledEvent = errors.New("unhandled provider event type")

	// ErrNoCustomerMapping indicates the user has no provider customer yet.
	ErrNoCustomerMapping = errors.New("no customer mapping found for user")

	// ErrNoActiveSubscription indicates the customer has no active
	// subscription at the provider.
	ErrNoActiveSubscription = errors.New("no active subscription found")
)

// AuthenticityError rejects a webhook delivery whose signature could not be
// verified against the signing secret, including expired timestamps.
type AuthenticityError struct {
	Reason string
	Err    error
}

func (e *AuthenticityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook authenticity check failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("webhook authenticity check failed: %s", e.Reason)
}

func (e *AuthenticityError) Unwrap() error {
	return e.Err
}

// RemoteProviderError wraps a failure from a synchronous provider API call.
// Surfaced verbatim to the caller; never retried internally and never
// accompanied by local state changes.
type RemoteProviderError struct {
	Op  string
	Err error
}

func (e *RemoteProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *RemoteProviderError) Unwrap() error {
	return e.Err
}
