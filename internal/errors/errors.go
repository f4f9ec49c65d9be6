package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session and entitlement subsystem
var (
	// Identity provider errors
	ErrNetwork          = errors.New("network failure")
	ErrCodeReplayed     = errors.New("authorization code already processed")
	ErrInvalidGrant     = errors.New("invalid grant")
	ErrRefreshRejected  = errors.New("refresh token no longer usable")
	ErrProfileFetch     = errors.New("profile fetch failed")
	ErrTokenNotVerified = errors.New("token not verified by provider")

	// Session errors
	ErrMissingOrExpiredToken = errors.New("missing or expired token")
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInvalidTransition     = errors.New("invalid session state transition")

	// Service token bridge errors
	ErrServiceTokenBridge = errors.New("service token bridge failed")
	ErrUserResolution     = errors.New("user resolution failed")

	// Entitlement errors
	ErrEntitlementFetch = errors.New("entitlement fetch failed")
	ErrPlanChange       = errors.New("plan change failed")

	// General errors
	ErrNotFound      = errors.New("not found")
	ErrInternal      = errors.New("internal error")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
