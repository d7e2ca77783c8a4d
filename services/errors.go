package services

import "fmt"

// The error taxonomy every service returns. Handlers map these to HTTP
// status codes at the boundary; anything unrecognized renders as 500.

// ValidationError covers missing or malformed request fields and rejected
// uploads.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthError covers missing, invalid or expired credentials and unverified
// accounts.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// AuthorizationError means the caller is authenticated but is not the
// owner, assignee or author the operation requires. It renders as 401, not
// 403; the legacy API never used 403 and clients depend on that.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError covers genuinely missing documents and, deliberately,
// access-control failures reported as missing. "Never invited", "already
// responded" and "invalid token" are indistinguishable through it.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// DependencyError wraps a failed call to storage, email or the database.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func dependency(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}
