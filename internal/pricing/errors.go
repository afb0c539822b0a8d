package pricing

import "fmt"

// Kind classifies a calculation failure. All kinds are user-input problems.
type Kind string

const (
	KindRouteNotFound     Kind = "ROUTE_NOT_FOUND"
	KindRateNotFound      Kind = "RATE_NOT_FOUND"
	KindMissingDimensions Kind = "MISSING_DIMENSIONS"
	KindInvalidReference  Kind = "INVALID_REFERENCE"
	KindCurrencyNotFound  Kind = "CURRENCY_NOT_FOUND"
)

// Error is a validation failure raised by the engine. Field names the input
// that caused it, when there is one.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrRateNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrRouteNotFound     = &Error{Kind: KindRouteNotFound, Message: "route not found"}
	ErrRateNotFound      = &Error{Kind: KindRateNotFound, Message: "rate not found"}
	ErrMissingDimensions = &Error{Kind: KindMissingDimensions, Message: "missing weight or dimensions"}
	ErrInvalidReference  = &Error{Kind: KindInvalidReference, Message: "invalid reference"}
	ErrCurrencyNotFound  = &Error{Kind: KindCurrencyNotFound, Message: "currency not found"}
)

func newError(kind Kind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}
