package datasource

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a provider has no data for the requested symbol.
var ErrNotFound = errors.New("datasource: not found")

// ProviderError wraps a failure of an upstream provider.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("datasource %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Wrap converts err into a *ProviderError unless it is nil or already a
// not-found condition.
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsProviderError reports whether err carries a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
