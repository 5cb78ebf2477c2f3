// Package errs defines the domain error taxonomy shared by every salestrack operation.
//
// Each error carries a stable machine-readable Kind and a human message.
// Match kinds with errors.Is against the sentinels below:
//
//	if errors.Is(err, errs.ErrForbidden) { ... }
package errs

import (
	"errors"
	"fmt"

	"github.com/jacentio/salestrack/store"
)

// Kind is the stable, machine-readable classification of an error.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindForbidden        Kind = "FORBIDDEN"
	KindConflict         Kind = "CONFLICT"
	KindQuotaExceeded    Kind = "QUOTA_EXCEEDED"
	KindInviteExpired    Kind = "INVITE_EXPIRED"
	KindInviteNotFound   Kind = "INVITE_NOT_FOUND"
	KindMalformedKey     Kind = "MALFORMED_KEY"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("salestrack: %s: %v", msg, e.Err)
	}
	return "salestrack: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so any *Error matches the sentinel of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var defaultMessages = map[Kind]string{
	KindValidation:       "invalid input",
	KindNotFound:         "not found",
	KindForbidden:        "forbidden",
	KindConflict:         "conflict",
	KindQuotaExceeded:    "quota exceeded",
	KindInviteExpired:    "invite expired",
	KindInviteNotFound:   "invite not found",
	KindMalformedKey:     "malformed key",
	KindStoreUnavailable: "store unavailable",
}

// Sentinels for errors.Is matching.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrQuotaExceeded  = &Error{Kind: KindQuotaExceeded}
	ErrInviteExpired  = &Error{Kind: KindInviteExpired}
	ErrInviteNotFound = &Error{Kind: KindInviteNotFound}
	ErrMalformedKey   = &Error{Kind: KindMalformedKey}
)

// New returns an error of kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of kind carrying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// KindOf classifies any error. Store infrastructure failures report
// KindStoreUnavailable; unclassified errors report "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, store.ErrUnavailable) {
		return KindStoreUnavailable
	}
	return ""
}

// FromStore translates a store outcome into the taxonomy.
// ErrUnavailable and unknown errors are returned unchanged.
func FromStore(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable):
		return err
	case errors.Is(err, store.ErrNotFound):
		return Wrap(KindNotFound, err, "%s not found", what)
	case errors.Is(err, store.ErrAlreadyExists):
		return Wrap(KindConflict, err, "%s already exists", what)
	case errors.Is(err, store.ErrConcurrentModification):
		return Wrap(KindConflict, err, "%s was modified concurrently", what)
	}
	return err
}
