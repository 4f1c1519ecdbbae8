package shared

import (
	"errors"

	"github.com/odyssey-erp/warehouse-console/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrSessionMissing occurs when a request carries no session.
	ErrSessionMissing = errors.New("session missing")
)

// UserSafeMessage maps an error to text that can be shown on a page without
// leaking internals.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, httpx.ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, httpx.ErrValidation):
		return "Some fields are invalid."
	case errors.Is(err, httpx.ErrForbidden), errors.Is(err, httpx.ErrUnauthorized):
		return "You are not allowed to do that."
	case errors.Is(err, httpx.ErrUnavailable):
		return "The warehouse service is unavailable. Try again shortly."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	}
	return "Something went wrong. Please try again."
}
