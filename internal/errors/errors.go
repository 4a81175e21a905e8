// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage means the provider answered but carried no usable image payload.
	ErrNoImage = errors.New("no image found in response")

	ErrVaultDisabled      = errors.New("vault is not configured")
	ErrGenerationDisabled = errors.New("generation is not configured")
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrSessionNotFound    = errors.New("session not found")
)

// ConfigMissingError reports a required secret that was not provided.
type ConfigMissingError struct {
	Key string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Key)
}

// NewConfigMissing is a helper constructor
func NewConfigMissing(key string) error {
	return &ConfigMissingError{Key: key}
}

// ProviderError wraps a failed call to the generative provider.
type ProviderError struct {
	Op  string // "image" or "text"
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProviderError(op string, err error) error {
	return &ProviderError{Op: op, Err: err}
}
