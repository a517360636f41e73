package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")

	// ErrPrecondition marks an allocation whose starting state is inconsistent. It is never retried.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNetworkNumbersExhausted is returned when every number in range is reserved
	ErrNetworkNumbersExhausted = errors.New("no network numbers available")

	// ErrUnresolvableReference marks an external record that names something we do not know
	ErrUnresolvableReference = errors.New("unresolvable reference")

	// ErrImmutableNetworkNumber is returned when a write would change a bound NN
	ErrImmutableNetworkNumber = errors.New("network number cannot be changed once set")
)
