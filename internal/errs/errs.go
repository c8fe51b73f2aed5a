// Package errs defines the error taxonomy shared by the client engine and the
// backend: validation failures, gateway failures and local persistence failures.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels used by the backend store and auth layers. Handlers map them to
// HTTP status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// ValidationError reports bad local input. It is always raised before any
// remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Validation creates a ValidationError for field.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// GatewayError reports a failed round trip to the remote backend: transport
// failure, authentication failure or a rejection by the backend.
type GatewayError struct {
	Op      string // gateway operation, e.g. "create_detection_record"
	Status  int    // HTTP status, 0 when the request never got a response
	Message string // message returned by the backend, if any
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	default:
		return "gateway " + e.Op + ": failed"
	}
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Gateway creates a GatewayError.
func Gateway(op string, status int, msg string, err error) *GatewayError {
	return &GatewayError{Op: op, Status: status, Message: msg, Err: err}
}

// PersistenceError reports a local serialize/deserialize failure. It is never
// fatal: callers log it and continue with default or partial state.
type PersistenceError struct {
	Op   string // "save" or "restore"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsGateway reports whether err is, or wraps, a GatewayError.
func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}

// IsPersistence reports whether err is, or wraps, a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// GatewayStatus returns the HTTP status carried by a GatewayError in err's
// chain, or 0.
func GatewayStatus(err error) int {
	var g *GatewayError
	if errors.As(err, &g) {
		return g.Status
	}
	return 0
}
