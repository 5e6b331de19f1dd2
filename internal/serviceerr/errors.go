// Package serviceerr holds the sentinel errors shared across the service.
package serviceerr

import "errors"

// Bootstrap and adapter errors. ErrInitialization and ErrProfileFetch are
// retryable by the user; ErrConfiguration needs an operator fix.
var (
	ErrInitialization = errors.New("liff client initialization failed")
	ErrProfileFetch   = errors.New("fetching liff profile failed")
	ErrConfiguration  = errors.New("no liff configuration for this path")
	ErrNotInClient    = errors.New("must open from the LINE app")
	ErrReentered      = errors.New("bootstrap already ran for this page load")
)

// Session and exchange errors.
var (
	ErrAuthorization  = errors.New("authorization failed")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidSession = errors.New("invalid session token")
)

// Redirect-state errors.
var (
	ErrStateNotFound       = errors.New("redirect state not found")
	ErrStateExpired        = errors.New("redirect state expired")
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)
