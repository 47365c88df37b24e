package rental

import (
	"errors"
	"fmt"
)

// Sentinel errors for the rental core. Callers classify failures with
// errors.Is.
var (
	// ErrValidation marks malformed caller input (missing config fields,
	// empty uid).
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedProviderType is returned when a config's type tag does
	// not match any registered provider implementation.
	ErrUnsupportedProviderType = errors.New("no provider found for the given type")
	// ErrNoEligibleProvider is returned when no configured provider can
	// satisfy a rental request.
	ErrNoEligibleProvider = errors.New("no eligible provider")
	// ErrUserCancelled is returned when the confirmation callback declines
	// the proposed rental plan.
	ErrUserCancelled = errors.New("rental cancelled by user")
	// ErrProviderRestore marks providers that failed to rebuild from the
	// persisted snapshot, distinct from an empty snapshot.
	ErrProviderRestore = errors.New("provider restore failed")
)

// AuthorizationCheckError wraps an error thrown while checking a provider's
// credentials during setup, as opposed to a clean authorization rejection.
type AuthorizationCheckError struct {
	Type string
	Err  error
}

func (e *AuthorizationCheckError) Error() string {
	return fmt.Sprintf("authorization check failed for provider type %q: %v", e.Type, e.Err)
}

func (e *AuthorizationCheckError) Unwrap() error { return e.Err }

// RentalExecutionError wraps a provider-side failure during rental
// execution, preserving the original cause.
type RentalExecutionError struct {
	ProviderUID string
	Err         error
}

func (e *RentalExecutionError) Error() string {
	return fmt.Sprintf("rental execution failed on provider %s: %v", e.ProviderUID, e.Err)
}

func (e *RentalExecutionError) Unwrap() error { return e.Err }

// RentalDelegationError wraps a failure while delegating a manual rental to
// the auto renter.
type RentalDelegationError struct {
	Err error
}

func (e *RentalDelegationError) Error() string {
	return fmt.Sprintf("rental delegation failed: %v", e.Err)
}

func (e *RentalDelegationError) Unwrap() error { return e.Err }
