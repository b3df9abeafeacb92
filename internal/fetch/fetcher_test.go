package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func digestServer(t *testing.T, username, password string) *httptest.Server {
	t.Helper()
	const realm = "aiseg"
	const nonce = "abc123nonce"

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate",
				`Digest realm="`+realm+`", nonce="`+nonce+`", qop="auth", algorithm=MD5`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// Don't re-validate the digest math here (digest_test.go covers
		// that); just confirm a Digest header with our username arrived.
		if !containsAll(auth, "Digest", username) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestFetchSucceedsAfterDigestChallenge(t *testing.T) {
	srv := digestServer(t, "aiseg-user", "aiseg-pass")
	defer srv.Close()

	f := New(srv.URL, "aiseg-user", "aiseg-pass", time.Second)
	body, err := f.Fetch(context.Background(), "/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html><body>ok</body></html>" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(srv.URL, "u", "p", time.Second)
	_, err := f.Fetch(context.Background(), "/page")
	fe, ok := AsFetchError(err)
	if !ok {
		t.Fatalf("expected *fetch.Error, got %T: %v", err, err)
	}
	if fe.Kind != KindFetch {
		t.Errorf("kind = %s, want fetch", fe.Kind)
	}
	if fe.StatusCode != 500 {
		t.Errorf("status = %d, want 500", fe.StatusCode)
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(srv.URL, "u", "p", 10*time.Millisecond)
	_, err := f.Fetch(context.Background(), "/page")
	fe, ok := AsFetchError(err)
	if !ok {
		t.Fatalf("expected *fetch.Error, got %T: %v", err, err)
	}
	if fe.Kind != KindTimeout {
		t.Errorf("kind = %s, want timeout", fe.Kind)
	}
}
