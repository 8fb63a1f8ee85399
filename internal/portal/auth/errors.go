package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Handshake failure kinds. Match them with errors.Is against an *AuthError.
var (
	ErrNoRedirect          = errors.New("authorize request did not redirect")
	ErrCSRFNotFound        = errors.New("request verification token not found in login page")
	ErrLoginRejected       = errors.New("login form was rejected")
	ErrCodeMissing         = errors.New("authorization code missing from callback")
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrNotAuthenticated is returned when a request is made before a successful handshake.
	ErrNotAuthenticated = errors.New("auth: session is not authenticated")
)

// AuthError describes why a handshake step failed.
type AuthError struct {
	Step   State
	Kind   error
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "auth: %s: %v", e.Step, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
