package models

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks invalid parameters (overlap >= chunk size,
// unknown splitter strategy, ...). Fatal to the call, never retried.
var ErrConfiguration = errors.New("invalid configuration")

// ProviderError wraps a failure from an external backend (embedding,
// vector store, reranker). The caller decides the retry policy.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err, preserving an existing ProviderError.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}
