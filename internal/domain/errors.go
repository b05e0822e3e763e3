// Package domain defines the entities and errors shared by the connector.
package domain

import (
	"errors"
	"fmt"
	"net"
)

// HostResolutionError indicates the platform host could not be reached during login.
type HostResolutionError struct {
	Host string
	Err  error
}

func (e *HostResolutionError) Error() string {
	var dnsErr *net.DNSError
	if e.Err != nil && !errors.As(e.Err, &dnsErr) {
		return fmt.Sprintf("Could not connect to host \"%s\": %v", e.Host, e.Err)
	}
	return fmt.Sprintf("Could not resolve host \"%s\"", e.Host)
}

func (e *HostResolutionError) Unwrap() error { return e.Err }

// AuthenticationError indicates the platform rejected the supplied credentials.
type AuthenticationError struct {
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Body)
}

// RemoteRequestError wraps a failed platform call. Body holds the remote
// response verbatim.
type RemoteRequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s resulted in HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

// ValidationError indicates input the platform refused, such as an upload
// rejected at the validation step.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a resource that must already exist was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UnrecognizedTypeError indicates a column type name outside the supported set.
type UnrecognizedTypeError struct {
	Type string
}

func (e *UnrecognizedTypeError) Error() string {
	return fmt.Sprintf("Unrecognized column type \"%s\"", e.Type)
}

// InvalidLengthError indicates a plain column size that is not an integer.
type InvalidLengthError struct {
	Size string
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("Invalid column size \"%s\"", e.Size)
}

// ColumnNotFoundError indicates a relationship names a column its table lacks.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("Cannot find column \"%s\" in table \"%s\"", e.Column, e.Table)
}

// BuildFailedError indicates the cube build finished with status "failed".
type BuildFailedError struct {
	DatamodelOID string
	URL          string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("Build failed. Please check the error in \"%s\"", e.URL)
}

// MissingFieldError indicates a platform payload lacked a required field.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: field \"%s\" is required", e.Entity, e.Field)
}

// ConnectionError is returned by the connectivity check.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Connection failed \"%s\"", e.Err.Error())
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err should be shown to the operator as a
// configuration or platform problem rather than an internal failure.
func IsUserError(err error) bool {
	var (
		hostErr   *HostResolutionError
		authErr   *AuthenticationError
		remoteErr *RemoteRequestError
		valErr    *ValidationError
		nfErr     *NotFoundError
		typeErr   *UnrecognizedTypeError
		lenErr    *InvalidLengthError
		colErr    *ColumnNotFoundError
		buildErr  *BuildFailedError
		connErr   *ConnectionError
	)
	switch {
	case errors.As(err, &hostErr), errors.As(err, &authErr), errors.As(err, &remoteErr),
		errors.As(err, &valErr), errors.As(err, &nfErr), errors.As(err, &typeErr),
		errors.As(err, &lenErr), errors.As(err, &colErr), errors.As(err, &buildErr),
		errors.As(err, &connErr):
		return true
	}
	return false
}
