// Package collector defines the collector contract (spec.md §4.4) and the
// four concrete AiSEG2 collectors (spec.md §4.3). Collectors are stateless
// across calls except for immutable config captured at construction and,
// in DailyTotal and CircuitDailyTotal, the queue of pending backfill days;
// the supervisor invokes them sequentially within a cadence and is never
// required to call them concurrently.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
)

// Kind classifies a collector failure (spec.md §4.4, §7).
type Kind int

const (
	KindFetch Kind = iota
	KindAuth
	KindParse
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindAuth:
		return "auth"
	case KindParse:
		return "parse"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified collector failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// AsCollectorError unwraps err into a *Error, if it is one. The supervisor
// uses this to attach a collector error's Kind to metrics and log fields
// without caring which concrete collector produced it.
func AsCollectorError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ParseError wraps err as a collector Error of KindParse: the page fetched
// successfully but no points could be produced from it (spec.md §4.3,
// §4.4 — an empty result is only legitimate when the device has no data,
// never when extraction itself failed).
func ParseError(err error) *Error { return &Error{Kind: KindParse, Err: err} }

// Collector is the uniform contract every concrete collector implements
// (spec.md §4.4). Collect may suspend (it performs HTTP fetches) and must
// either complete or return an error before the caller's deadline expires;
// the caller (the supervisor) is responsible for enforcing that deadline
// via ctx.
type Collector interface {
	ID() model.CollectorId
	Collect(ctx context.Context) ([]model.Point, error)
}

// classifyFetchErr maps a *fetch.Error (spec.md §7's Fetch/Auth/Timeout
// taxonomy) onto the collector-level Error taxonomy the supervisor and
// breaker consume.
func classifyFetchErr(err error) *Error {
	fe, ok := fetch.AsFetchError(err)
	if !ok {
		return &Error{Kind: KindFetch, Err: err}
	}
	switch fe.Kind {
	case fetch.KindAuth:
		return &Error{Kind: KindAuth, Err: fe}
	case fetch.KindTimeout:
		return &Error{Kind: KindTimeout, Err: fe}
	default:
		return &Error{Kind: KindFetch, Err: fe}
	}
}
