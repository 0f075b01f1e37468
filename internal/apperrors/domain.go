package apperrors

import (
	"errors"
	"strings"
)

// Kind classifies domain failures independently of transport.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAccessDenied       Kind = "access_denied"
	KindInvariantViolation Kind = "invariant_violation"
	KindInvalidState       Kind = "invalid_state"
	KindValidationBatch    Kind = "validation_batch"
	KindConfigurationFault Kind = "configuration_fault"
	KindBadRequest         Kind = "bad_request"
)

// Error is a domain error carrying a kind and a symbolic message key.
// Details holds the offending values of a batch failure (e.g. unknown emails).
type Error struct {
	Kind    Kind
	Key     string
	Details []string
}

// New creates a domain error.
func New(kind Kind, key string) *Error {
	return &Error{Kind: kind, Key: key}
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Key
	}
	return e.Key + ": " + strings.Join(e.Details, ", ")
}

// Is matches on kind and key so that errors carrying details still satisfy
// errors.Is against their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Key == t.Key
}

// WithDetails returns a copy of e with the given details attached.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append([]string(nil), details...)
	return &cp
}

// KindOf returns the kind of the first domain error in err's chain, or "".
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
