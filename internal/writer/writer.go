// Package writer implements the InfluxDB v2 writer (spec.md §4.5, C6). It
// serializes points to line protocol and posts one batch per call; on
// failure it classifies the error and returns, it never retries — the
// supervisor decides whether to drop the batch and move on (spec.md §7).
package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
)

// Kind classifies a writer failure (spec.md §4.5: transport/auth/payload).
type Kind int

const (
	KindTransport Kind = iota
	KindAuth
	KindPayload
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Error is a classified writer failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string { return fmt.Sprintf("%s write failed: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Writer batches Points as InfluxDB v2 line-protocol writes. It is built on
// influxdb-client-go/v2's blocking write API (api.WriteAPIBlocking), chosen
// over the async WriteAPI used by the teacher's storage layer precisely
// because spec.md §4.5 requires a synchronous, classified, non-retrying
// result per call — async WritePoint() has no return value to classify.
type Writer struct {
	client   influxdb2.Client
	blocking api.WriteAPIBlocking
}

// New constructs a Writer targeting the given InfluxDB v2 bucket/org with
// the given auth token. The underlying client performs no automatic retry
// (WriteOptions.RetryInterval == 0 is not configurable to "off" directly,
// so MaxRetries is set to 0 instead, matching spec.md's "writer does not
// retry" requirement).
func New(url, token, org, bucket string) *Writer {
	opts := influxdb2.DefaultOptions().SetMaxRetries(0)
	client := influxdb2.NewClientWithOptions(url, token, opts)
	return &Writer{
		client:   client,
		blocking: client.WriteAPIBlocking(org, bucket),
	}
}

// Write converts points to influxdb2 points and performs one blocking batch
// write call. A single batch per call is the supervisor's chosen batching
// granularity (spec.md §4.5); Write itself has no opinion on batch size.
func (w *Writer) Write(ctx context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}

	converted := make([]*influxdb2.Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, influxdb2.NewPoint(p.Name(), p.Tags(), p.Fields(), p.Timestamp()))
	}

	if err := w.blocking.WritePoint(ctx, converted...); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// Close releases the underlying HTTP client's resources.
func (w *Writer) Close() {
	w.client.Close()
}

func classifyWriteErr(err error) *Error {
	var apiErr *ihttp.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindAuth, StatusCode: apiErr.StatusCode, Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &Error{Kind: KindPayload, StatusCode: apiErr.StatusCode, Err: err}
		default:
			return &Error{Kind: KindTransport, StatusCode: apiErr.StatusCode, Err: err}
		}
	}
	return &Error{Kind: KindTransport, Err: err}
}

// AsWriteError unwraps err into a *Error, if it is one.
func AsWriteError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
