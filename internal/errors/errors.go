// Package errors provides structured error handling with context propagation
// for the chat service's error taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for logging and propagation policy.
type ErrorType string

const (
	// TypeProtocol indicates the peer violated the wire protocol (e.g. blank
	// author at handshake). Closes one connection, never the server.
	TypeProtocol ErrorType = "protocol"
	// TypeCommunication indicates an I/O failure or unexpected stream end.
	// Closes one connection, logged, not retried.
	TypeCommunication ErrorType = "communication"
	// TypeFatal indicates an accept-loop failure unrelated to timeout or
	// shutdown. Propagates and stops the server.
	TypeFatal ErrorType = "fatal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ProtocolError creates a new protocol violation error.
func ProtocolError(message string) *Error {
	return &Error{
		Type:    TypeProtocol,
		Message: message,
		Context: make(map[string]any),
	}
}

// CommunicationError creates a new communication error wrapping an I/O cause.
func CommunicationError(message string, cause error) *Error {
	return &Error{
		Type:    TypeCommunication,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// FatalError creates a new server-fatal error.
func FatalError(message string, cause error) *Error {
	return &Error{
		Type:    TypeFatal,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsProtocol reports whether err is (or wraps) a protocol error.
func IsProtocol(err error) bool {
	return isType(err, TypeProtocol)
}

// IsCommunication reports whether err is (or wraps) a communication error.
func IsCommunication(err error) bool {
	return isType(err, TypeCommunication)
}

// IsFatal reports whether err is (or wraps) a server-fatal error.
func IsFatal(err error) bool {
	return isType(err, TypeFatal)
}

func isType(err error, t ErrorType) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Type == t
	}
	return false
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as a communication error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return CommunicationError("unexpected error", err)
}
