package keypool

import "errors"

// Sentinel errors for credential pool operations.
var (
	// ErrPoolExhausted is returned when a provider has no active credential.
	// It signals a configuration problem, not a transient condition.
	ErrPoolExhausted = errors.New("keypool: no active credential for provider")

	// ErrCredentialNotFound is returned when a credential id does not exist.
	ErrCredentialNotFound = errors.New("keypool: credential not found")

	// ErrUnknownStrategy is returned for an unrecognized selection strategy.
	ErrUnknownStrategy = errors.New("keypool: unknown selection strategy")
)
