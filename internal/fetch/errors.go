package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for breaker/log purposes (spec.md §7).
type Kind int

const (
	KindFetch Kind = iota
	KindAuth
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure. StatusCode is 0 when the failure
// happened before a response was received (timeout, DNS, connection reset).
type Error struct {
	Kind       Kind
	StatusCode int
	Path       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.Path, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsFetchError reports whether err is (or wraps) a *fetch.Error.
func AsFetchError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
