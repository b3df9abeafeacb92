// Package fetch implements the HTTP fetcher (spec.md §4.1): authenticated
// GETs of AiSEG2 pages behind a shared, connection-pooled http.Client, with
// classified errors for the breaker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher issues authenticated GETs against a fixed base URL. It is safe
// for concurrent use; a single underlying http.Client is shared for
// connection pooling (spec.md §4.1, §5).
type Fetcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// New builds a Fetcher against baseURL, authenticating with HTTP Digest
// using username/password, applying timeout per request.
func New(baseURL, username, password string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		timeout: timeout,
		client: &http.Client{
			Transport: newDigestTransport(username, password, http.DefaultTransport),
		},
	}
}

// Fetch issues an authenticated GET to {baseURL}{path} and returns the
// response body. Non-2xx responses become a *fetch.Error of KindFetch (or
// KindAuth for 401/403); an expired context deadline becomes KindTimeout,
// while other request failures, including cancellation, are KindFetch.
func (f *Fetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Path: path, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTimeout, Path: path, Err: err}
		}
		return nil, &Error{Kind: KindFetch, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Path: path, StatusCode: resp.StatusCode, Err: err}
		}
		return nil, &Error{Kind: KindFetch, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &Error{Kind: KindAuth, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("authentication failed")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindFetch, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	return body, nil
}
