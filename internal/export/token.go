package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrTokenFetch marks a failed credential exchange. Callers branch on it
// with errors.Is; the cached token, if any, is left untouched.
var ErrTokenFetch = errors.New("token fetch failed")

// tokenSafetyMargin is subtracted from the server-reported lifetime so a
// token is treated as expired before the server would reject it.
const tokenSafetyMargin = 30 * time.Second

// Token is a cached bearer credential with its absolute expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token exists and has not expired.
func (t *Token) Valid() bool {
	return t != nil && time.Now().Before(t.ExpiresAt)
}

// TokenManager owns the single cached token slot for the export client.
// It fetches tokens via an OAuth client-credentials grant and refreshes
// synchronously when the cached token has expired.
type TokenManager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu     sync.Mutex
	cached *Token
}

// NewTokenManager creates a manager for the given credential endpoint.
// An empty tokenURL selects no-auth mode: GetValidToken returns nil and
// no Authorization header is attached to exports.
func NewTokenManager(tokenURL, clientID, clientSecret string) *TokenManager {
	return &TokenManager{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a credential endpoint is configured.
func (m *TokenManager) Enabled() bool {
	return m.tokenURL != ""
}

// GetValidToken returns the cached token if it has not expired, fetching
// and caching a new one otherwise. The fetch blocks the caller. In
// no-auth mode it returns (nil, nil).
func (m *TokenManager) GetValidToken(ctx context.Context) (*Token, error) {
	if !m.Enabled() {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached.Valid() {
		return m.cached, nil
	}

	token, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.cached = token
	return token, nil
}

// Invalidate clears the cached token, forcing a fetch on next use. The
// export client calls this after a 401 from the collector.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresInSeconds"`
}

// fetch performs one client-credentials exchange. Caller holds the lock.
func (m *TokenManager) fetch(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrTokenFetch, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTokenFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrTokenFetch, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrTokenFetch, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenFetch)
	}

	return &Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin),
	}, nil
}
