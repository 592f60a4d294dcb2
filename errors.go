package bridge

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies bridge errors by the component that raised them.
// The string value is reported as the RUN_ERROR code.
type Kind string

const (
	// KindValidation indicates a malformed run request: missing thread id,
	// empty history, or an unparseable tools list.
	KindValidation Kind = "validation"

	// KindTranslation indicates a raw backend event that could not be turned
	// into canonical events (missing tool name, unserializable arguments).
	KindTranslation Kind = "translation"

	// KindBackend indicates the agent backend failed while executing a chunk.
	KindBackend Kind = "backend"

	// KindSessionStore indicates the session store could not read or persist a session.
	KindSessionStore Kind = "session_store"

	// KindTimeout indicates a backend invocation or session operation exceeded its deadline.
	KindTimeout Kind = "timeout"
)

// Sentinel errors. Match them with errors.Is; they are wrapped in *Error
// with the appropriate Kind when they cross a component boundary.
var (
	ErrMissingThreadID    = errors.New("thread id is required")
	ErrNoMessages         = errors.New("no messages provided")
	ErrMissingToolName    = errors.New("tool call has no name")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownToolResult  = errors.New("tool result does not match a pending tool call")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Error is a categorized bridge error.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the wire code for the error, the string form of its Kind.
func (e *Error) Code() string {
	return string(e.Kind)
}

// NewValidationError creates an error for a malformed run request.
func NewValidationError(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Cause: cause}
}

// NewTranslationError creates an error for a raw event that cannot be translated.
func NewTranslationError(msg string, cause error) *Error {
	return &Error{Kind: KindTranslation, Msg: msg, Cause: cause}
}

// NewBackendError creates an error for a failed backend invocation.
func NewBackendError(msg string, cause error) *Error {
	return &Error{Kind: KindBackend, Msg: msg, Cause: cause}
}

// NewSessionStoreError creates an error for a failed session read or write.
func NewSessionStoreError(msg string, cause error) *Error {
	return &Error{Kind: KindSessionStore, Msg: msg, Cause: cause}
}

// NewTimeoutError creates an error for an exceeded deadline.
func NewTimeoutError(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Msg: msg, Cause: cause}
}

// KindOf returns the Kind of err. Deadline errors are reported as
// KindTimeout; anything not carrying a Kind is treated as a backend failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTimeout returns true if err is a timeout error.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
