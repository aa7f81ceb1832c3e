// Package errs defines the error taxonomy shared by the inventory store and
// the connection dispatcher. Every error is a pointer type so callers can
// match it with errors.As.
package errs

import (
	"fmt"
	"strings"
)

// ValidationError reports a record field that failed validation before any
// write or spawn happened.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a reference to a record id that does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("server %d not found", e.ID)
}

func NewNotFoundError(id int64) *NotFoundError {
	return &NotFoundError{ID: id}
}

// UnknownProtocolError reports a protocol missing from the registry.
type UnknownProtocolError struct {
	Protocol string
}

func (e *UnknownProtocolError) Error() string {
	if e.Protocol == "" {
		return "protocol is required"
	}
	return fmt.Sprintf("unknown protocol %q", e.Protocol)
}

func NewUnknownProtocolError(protocol string) *UnknownProtocolError {
	return &UnknownProtocolError{Protocol: protocol}
}

// UnsupportedCombinationError reports a (protocol, os) pair with no launch
// strategy.
type UnsupportedCombinationError struct {
	Protocol string
	OS       string
}

func (e *UnsupportedCombinationError) Error() string {
	return fmt.Sprintf("no %s client strategy for %s targets", e.Protocol, e.OS)
}

func NewUnsupportedCombinationError(protocol, os string) *UnsupportedCombinationError {
	return &UnsupportedCombinationError{Protocol: protocol, OS: os}
}

// PortResolutionError reports that neither the record nor the registry
// yields a usable TCP port.
type PortResolutionError struct {
	Protocol string
	Port     int
}

func (e *PortResolutionError) Error() string {
	if e.Port == 0 {
		return fmt.Sprintf("no port set and no default port for protocol %q", e.Protocol)
	}
	return fmt.Sprintf("port %d out of range (must be 1-65535)", e.Port)
}

func NewPortResolutionError(protocol string, port int) *PortResolutionError {
	return &PortResolutionError{Protocol: protocol, Port: port}
}

// StorageError reports that the persistence layer is unavailable, unwritable
// or holds an incompatible schema.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString("storage ")
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

// LaunchError reports a failed spawn of an external client. Command holds the
// argv that was attempted, when one had been built.
type LaunchError struct {
	Command []string
	Reason  string
	Err     error
}

func (e *LaunchError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = "launch failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func NewLaunchError(command []string, reason string, err error) *LaunchError {
	return &LaunchError{Command: append([]string(nil), command...), Reason: reason, Err: err}
}
