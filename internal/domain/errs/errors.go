package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies archive errors so callers can tell "no data yet" from "failed to fetch".
type Kind string

const (
	KindValidation               Kind = "VALIDATION_ERROR"
	KindStorageUnavailable       Kind = "STORAGE_UNAVAILABLE"
	KindIncompleteBasket         Kind = "INCOMPLETE_BASKET"
	KindAlreadyGraded            Kind = "ALREADY_GRADED"
	KindRealizedPriceUnavailable Kind = "REALIZED_PRICE_UNAVAILABLE"
	KindNotFound                 Kind = "NOT_FOUND"
	KindUpstreamUnavailable      Kind = "UPSTREAM_UNAVAILABLE"
)

// Error is a structured archive error: a kind, the failing operation and context fields.
type Error struct {
	Kind   Kind
	Op     string
	Fields map[string]interface{}
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// With adds a context field.
func (e *Error) With(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Fields: make(map[string]interface{})}
}

// Validation reports malformed ingestion input for a field.
func Validation(op, field, msg string) *Error {
	return newError(KindValidation, op, errors.New(msg)).With("field", field)
}

// StorageUnavailable reports that the backing store could not be reached.
func StorageUnavailable(op string, err error) *Error {
	return newError(KindStorageUnavailable, op, err)
}

// IncompleteBasket lists the constituents missing from a dominance basket.
func IncompleteBasket(missing ...string) *Error {
	return newError(KindIncompleteBasket, "dominance", nil).With("missing", strings.Join(missing, ","))
}

// AlreadyGraded reports a verdict transition attempted on a terminal row.
func AlreadyGraded(id int64, current string) *Error {
	return newError(KindAlreadyGraded, "update_verdict", nil).With("id", id).With("verdict", current)
}

// RealizedPriceUnavailable reports that grading had to be deferred.
func RealizedPriceUnavailable(symbol string, err error) *Error {
	return newError(KindRealizedPriceUnavailable, "grade", err).With("symbol", symbol)
}

// NotFound reports a missing row.
func NotFound(op string, id int64) *Error {
	return newError(KindNotFound, op, nil).With("id", id)
}

// UpstreamUnavailable reports that the market data source failed or returned garbage.
func UpstreamUnavailable(op string, err error) *Error {
	return newError(KindUpstreamUnavailable, op, err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
