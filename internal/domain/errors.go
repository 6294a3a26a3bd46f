package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication signals that the server rejected the presented
	// credentials at the application level. No session state is retained
	// after it.
	ErrAuthentication = errors.New("credentials rejected by server")

	// ErrDownloadServer is a terminal failure while the server was
	// preparing or serving a download. It is never retried.
	ErrDownloadServer = errors.New("server failed while serving the download")
)

// ArityError reports a positional/keyword combination that cannot cover a
// command's parameters: either too many positional arguments, or required
// parameters left unbound (Missing > 0).
type ArityError struct {
	Command  string
	Expected int
	Given    int
	Missing  int
}

func (e *ArityError) Error() string {
	if e.Missing > 0 {
		return fmt.Sprintf("%s expected %d argument(s), got %d (%d required parameter(s) missing)",
			e.Command, e.Expected, e.Given, e.Missing)
	}
	return fmt.Sprintf("%s has %d argument(s) (%d given)", e.Command, e.Expected, e.Given)
}

// UnknownParameterError reports a keyword argument that names no declared
// parameter.
type UnknownParameterError struct {
	Command   string
	Parameter string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("%s received unknown keyword argument %q", e.Command, e.Parameter)
}

// DuplicateBindingError reports a keyword argument for a parameter already
// consumed by a positional argument.
type DuplicateBindingError struct {
	Command   string
	Parameter string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("%s got multiple values for argument %q", e.Command, e.Parameter)
}

// UnknownCommandError reports a command name absent from the manifest.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s is not a known command; try refreshing the manifest with 'galah manifest refresh'", e.Command)
}

// InvocationError wraps an argument-binding failure together with the
// command's usage string for user display.
type InvocationError struct {
	Command string
	Usage   string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("could not parse command: %v\nusage: %s", e.Err, e.Usage)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ManifestFormatError means the server sent structurally invalid manifest
// data. It is distinct from a transport failure: the network worked, the
// payload did not.
type ManifestFormatError struct {
	Reason string
	Err    error
}

func (e *ManifestFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed manifest: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed manifest: %s", e.Reason)
}

func (e *ManifestFormatError) Unwrap() error { return e.Err }

// TransportError means the server did not respond at all. Always fatal to
// the current operation, never silently retried.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("server did not respond at %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is an unexpected non-success HTTP status with no
// application-level explanation.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("unexpected server error (HTTP %d)", e.Status)
}

// PermissionDeniedError is a server-side authorization failure, reported
// distinctly from a generic application error.
type PermissionDeniedError struct {
	Message string
}

func (e *PermissionDeniedError) Error() string {
	return "you do not have sufficient permissions to use that command"
}

// ApplicationError carries the server's own explanation of a failed call.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string { return e.Message }

// StateError reports a problem with the persisted session or manifest
// cache on disk.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session state at %s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
