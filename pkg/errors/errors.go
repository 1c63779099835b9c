// Package errors defines the application error taxonomy for mcp-manager.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrConfig is returned when required configuration is missing or invalid
	ErrConfig = "config"

	// ErrValidation is returned when caller-supplied input fails validation
	ErrValidation = "validation"

	// ErrDiscovery is returned when OAuth metadata discovery exhausts its fallback chain
	ErrDiscovery = "discovery"

	// ErrToken is returned when a token exchange or refresh fails
	ErrToken = "token"

	// ErrDecryption is returned when an encrypted payload cannot be decrypted
	ErrDecryption = "decryption"

	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = "not_found"

	// ErrProvider is returned when a provider backend call fails
	ErrProvider = "provider"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, cause error) *Error {
	return NewError(ErrConfig, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *Error {
	return NewError(ErrValidation, message, cause)
}

// NewDiscoveryError creates a new discovery error
func NewDiscoveryError(message string, cause error) *Error {
	return NewError(ErrDiscovery, message, cause)
}

// NewTokenError creates a new token error
func NewTokenError(message string, cause error) *Error {
	return NewError(ErrToken, message, cause)
}

// NewDecryptionError creates a new decryption error
func NewDecryptionError(message string, cause error) *Error {
	return NewError(ErrDecryption, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewProviderError creates a new provider error
func NewProviderError(message string, cause error) *Error {
	return NewError(ErrProvider, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func isType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsConfig checks if the error is a configuration error
func IsConfig(err error) bool {
	return isType(err, ErrConfig)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrValidation)
}

// IsDiscovery checks if the error is a discovery error
func IsDiscovery(err error) bool {
	return isType(err, ErrDiscovery)
}

// IsToken checks if the error is a token error
func IsToken(err error) bool {
	return isType(err, ErrToken)
}

// IsDecryption checks if the error is a decryption error
func IsDecryption(err error) bool {
	return isType(err, ErrDecryption)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrNotFound)
}

// IsProvider checks if the error is a provider error
func IsProvider(err error) bool {
	return isType(err, ErrProvider)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}
