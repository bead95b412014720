package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, fetches *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"accessToken":"tok-%d","expiresInSeconds":%d}`, fetches.Load(), expiresIn)
	}))
}

func TestGetValidTokenCachesUntilExpiry(t *testing.T) {
	var fetches atomic.Int64
	srv := tokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := NewTokenManager(srv.URL, "bot", "secret")
	first, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1", fetches.Load())
	}
	if first.AccessToken != second.AccessToken {
		t.Errorf("cached token changed: %q != %q", first.AccessToken, second.AccessToken)
	}
}

func TestGetValidTokenAppliesSafetyMargin(t *testing.T) {
	var fetches atomic.Int64
	srv := tokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := NewTokenManager(srv.URL, "bot", "secret")
	before := time.Now()
	token, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	upper := before.Add(3600*time.Second - tokenSafetyMargin).Add(time.Second)
	lower := before.Add(3600*time.Second - tokenSafetyMargin).Add(-time.Second)
	if token.ExpiresAt.After(upper) || token.ExpiresAt.Before(lower) {
		t.Errorf("ExpiresAt = %v, want ~%v", token.ExpiresAt, before.Add(3600*time.Second-tokenSafetyMargin))
	}
}

func TestGetValidTokenRefetchesExpired(t *testing.T) {
	var fetches atomic.Int64
	// 30s lifetime minus the 30s margin leaves an already-expired token.
	srv := tokenServer(t, &fetches, 30)
	defer srv.Close()

	m := NewTokenManager(srv.URL, "bot", "secret")
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if fetches.Load() != 2 {
		t.Errorf("fetches = %d, want 2 for an expired token", fetches.Load())
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var fetches atomic.Int64
	srv := tokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := NewTokenManager(srv.URL, "bot", "secret")
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	m.Invalidate()
	token, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if fetches.Load() != 2 {
		t.Errorf("fetches = %d, want 2 after Invalidate", fetches.Load())
	}
	if token.AccessToken != "tok-2" {
		t.Errorf("token = %q, want tok-2", token.AccessToken)
	}
}

func TestGetValidTokenFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusForbidden)
	}))
	defer srv.Close()

	m := NewTokenManager(srv.URL, "bot", "wrong")
	token, err := m.GetValidToken(context.Background())
	if token != nil {
		t.Errorf("token = %+v, want nil", token)
	}
	if !errors.Is(err, ErrTokenFetch) {
		t.Errorf("err = %v, want ErrTokenFetch", err)
	}
}

func TestGetValidTokenNoAuthMode(t *testing.T) {
	m := NewTokenManager("", "", "")
	if m.Enabled() {
		t.Error("Enabled() = true with empty token URL")
	}
	token, err := m.GetValidToken(context.Background())
	if token != nil || err != nil {
		t.Errorf("GetValidToken = (%v, %v), want (nil, nil)", token, err)
	}
}
