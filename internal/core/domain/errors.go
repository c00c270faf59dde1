package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core matches exactly one of these
// through errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation error")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrPollClosed      = errors.New("poll closed")
	ErrStore           = errors.New("store error")
)

var (
	ErrLoginRequired    = newError(ErrUnauthenticated, "You must be logged in.")
	ErrTitleRequired    = newError(ErrValidation, "Title is required.")
	ErrTitleTooShort    = newError(ErrValidation, fmt.Sprintf("Title must be at least %d characters.", MinTitleLength))
	ErrNotEnoughOptions = newError(ErrValidation, fmt.Sprintf("At least %d options are required.", MinOptions))
	ErrExpiryInPast     = newError(ErrValidation, "Expiry must be in the future.")
	ErrPollIDRequired   = newError(ErrValidation, "Poll ID is required.")
	ErrOptionIDRequired = newError(ErrValidation, "Option ID is required.")
	ErrInvalidPollID    = newError(ErrValidation, "Invalid poll ID.")
	ErrInvalidOptionID  = newError(ErrValidation, "Invalid option ID.")
	ErrPollNotFound     = newError(ErrNotFound, "Poll not found.")
	ErrOptionNotFound   = newError(ErrNotFound, "Option not found for this poll.")
	ErrUserNotFound     = newError(ErrNotFound, "User not found.")
	ErrNotPollOwner     = newError(ErrForbidden, "You are not authorized to delete this poll.")
	ErrPollHasClosed    = newError(ErrPollClosed, "This poll has closed.")
)

// Error carries a kind from the taxonomy above, a short human readable
// message and, for store failures, the underlying cause.
type Error struct {
	kind    error
	message string
	cause   error
}

func newError(kind error, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Message is the text safe to show to an end user.
func (e *Error) Message() string {
	return e.message
}

// Kind returns the taxonomy sentinel.
func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// StoreError wraps a data store failure. A nil err yields nil.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{kind: ErrStore, message: "failed to " + op, cause: err}
}

// KindOf maps any error onto its taxonomy kind. Unknown errors are treated as
// store failures.
func KindOf(err error) error {
	for _, k := range []error{ErrUnauthenticated, ErrValidation, ErrForbidden, ErrNotFound, ErrPollClosed, ErrStore} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrStore
}

// KindName is the stable label used in API responses and metrics.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrValidation:
		return "validation"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrPollClosed:
		return "poll_closed"
	default:
		return "store_error"
	}
}

// UserMessage returns the human readable message for err. Store failures
// never leak their cause.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.kind != ErrStore {
		return de.message
	}
	return "Something went wrong. Please try again."
}
