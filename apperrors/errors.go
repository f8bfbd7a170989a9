// Package apperrors defines the error taxonomy shared by the stores, the services and the
// HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error.
type Kind string

const (
	// KindNotFound means the targeted entity is absent or excluded by a scoping filter.
	KindNotFound Kind = "not_found"
	// KindConflict means a unique constraint was violated.
	KindConflict Kind = "conflict"
	// KindInvalidReference means a write named a related entity that does not exist.
	KindInvalidReference Kind = "invalid_reference"
	// KindAuthenticationFailed means the caller could not be identified.
	KindAuthenticationFailed Kind = "authentication_failed"
	// KindAuthorizationFailed means the caller may not perform the operation.
	KindAuthorizationFailed Kind = "authorization_failed"
	// KindInvalid means the input was malformed.
	KindInvalid Kind = "invalid"
	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// Error is the structured error surfaced to the boundary layer.
// Type is a stable machine-readable name such as "UserNotFound".
type Error struct {
	Kind    Kind
	Type    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same Type so that wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type
}

// Wrap returns a copy of e carrying cause. The copy still matches e with errors.Is.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Type: e.Type, Message: e.Message, Err: cause}
}

// New creates a new error
func New(kind Kind, typ, message string, err error) *Error {
	return &Error{Kind: kind, Type: typ, Message: message, Err: err}
}

var (
	ErrUserNotFound    = New(KindNotFound, "UserNotFound", "User not found", nil)
	ErrPostNotFound    = New(KindNotFound, "PostNotFound", "Post not found", nil)
	ErrCommentNotFound = New(KindNotFound, "CommentNotFound", "Comment not found", nil)
	ErrUserExists      = New(KindConflict, "UserExists", "User already exists", nil)
	ErrAuthnFailed     = New(KindAuthenticationFailed, "AuthnFailed", "Authentication failed", nil)
	ErrAuthzFailed     = New(KindAuthorizationFailed, "AuthzFailed", "Not authorized", nil)
	ErrEmptyPatch      = New(KindInvalid, "EmptyPatch", "Patch is empty", nil)
	ErrInvalidEmail    = New(KindInvalid, "InvalidEmail", "Invalid email address", nil)
	ErrInvalidID       = New(KindInvalid, "InvalidId", "Invalid identifier", nil)
	ErrInvalidContent  = New(KindInvalid, "InvalidContent", "Content cannot be empty", nil)
	ErrInvalidRequest  = New(KindInvalid, "InvalidRequest", "Malformed request", nil)
)

// Reference wraps a not-found sentinel raised while validating a related entity of a write.
// The result has KindInvalidReference and still matches the wrapped sentinel with errors.Is.
func Reference(notFound *Error) *Error {
	return &Error{
		Kind:    KindInvalidReference,
		Type:    notFound.Type,
		Message: notFound.Message,
		Err:     notFound,
	}
}

// Internal wraps an unexpected store or driver failure.
func Internal(op string, err error) *Error {
	return New(KindInternal, "Internal", op, err)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsBusiness reports whether err is a business-rule failure that must not be retried.
func IsBusiness(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind != KindInternal
}
