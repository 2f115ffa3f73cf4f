// Package errors provides centralized error definitions for shellauth.
package errors

import "errors"

// Storage errors.
var (
	// ErrStorageUnavailable indicates the durable storage could not be read or written.
	// It is never fatal: the session is treated as absent or not persisted.
	ErrStorageUnavailable = errors.New("session storage unavailable")

	// ErrKeyNotFound indicates the requested key has no value in the backend.
	ErrKeyNotFound = errors.New("key not found")

	// ErrCorruptValue indicates a stored value exists but cannot be decoded.
	ErrCorruptValue = errors.New("corrupt stored value")

	// ErrInvalidSession indicates a session record does not have the shape required
	// for the requested operation.
	ErrInvalidSession = errors.New("invalid session")
)

// Storage backend errors.
var (
	// ErrBackendNotRegistered indicates the requested backend type is not registered.
	ErrBackendNotRegistered = errors.New("storage backend type not registered")

	// ErrBackendConfigInvalid indicates the backend configuration is invalid.
	ErrBackendConfigInvalid = errors.New("invalid storage backend configuration")
)

// Message channel errors.
var (
	// ErrUntrustedOrigin indicates an inbound message came from an origin other
	// than the configured trusted origin.
	ErrUntrustedOrigin = errors.New("untrusted message origin")

	// ErrMalformedMessage indicates an inbound message could not be interpreted
	// as a session payload.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidOrigin indicates a configured trusted origin is not a single
	// exact scheme://host origin.
	ErrInvalidOrigin = errors.New("invalid trusted origin")
)

// Authentication flow errors.
var (
	// ErrAuthenticationFailed indicates the remote peer reported status=fail.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrMissingVerificationContext indicates the verification screen was reached
	// without an email address.
	ErrMissingVerificationContext = errors.New("missing verification context")

	// ErrNotAwaitingVerification indicates a verification operation was attempted
	// while no verification is in progress.
	ErrNotAwaitingVerification = errors.New("not awaiting verification")

	// ErrAlreadyAuthenticated indicates a verification was requested while a
	// session is already active.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrNotStarted indicates the state machine has not finished reading the
	// persisted session yet.
	ErrNotStarted = errors.New("session state not started")

	// ErrEmptyCode indicates an empty verification code was submitted.
	ErrEmptyCode = errors.New("verification code is required")

	// ErrPasskeyDisabled indicates passkey sign-in is not enabled.
	ErrPasskeyDisabled = errors.New("passkey sign-in disabled")
)
