package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure returned by a chat or direct-message operation.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindNotParticipant     Kind = "NOT_PARTICIPANT"
	KindAlreadyParticipant Kind = "ALREADY_PARTICIPANT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindValidation         Kind = "VALIDATION"
	KindTransient          Kind = "TRANSIENT_STORAGE_FAILURE"
)

// Error is the single error type surfaced by the core. The API layer maps
// Kind to a protocol status.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func NotParticipant(chatID, userID string) *Error {
	return &Error{Kind: KindNotParticipant, Message: fmt.Sprintf("user %s is not a participant of chat %s", userID, chatID)}
}

func AlreadyParticipant(chatID, userID string) *Error {
	return &Error{Kind: KindAlreadyParticipant, Message: fmt.Sprintf("user %s is already a participant of chat %s", userID, chatID)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Transient wraps a storage failure. Callers may retry idempotent operations.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// KindOf reports the Kind of err. Errors that did not originate in this
// package are reported as transient storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Wrap returns err unchanged when it is already an *Error, otherwise it is
// wrapped as a transient failure with the given context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Transient(message, err)
}
