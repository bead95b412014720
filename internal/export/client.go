// Package export implements the batch export client and its token
// manager. Every failure below this boundary is converted to a logged
// false result; callers never see an error or a panic from PostBatch.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/user/pulsebot/internal/types"
)

// Config holds the settings the export client reads once at construction.
type Config struct {
	Enabled    bool
	Endpoint   string
	BotVersion string
}

const (
	dialTimeout     = 5 * time.Second
	responseTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
)

// Client posts validated event batches to the remote collector with
// bearer auth and a single 401 retry.
type Client struct {
	cfg        Config
	tokens     *TokenManager
	httpClient *http.Client
}

// NewClient creates a stopped client. Start must be called before the
// first PostBatch.
func NewClient(cfg Config, tokens *TokenManager) *Client {
	return &Client{cfg: cfg, tokens: tokens}
}

// Start builds the HTTP transport.
func (c *Client) Start() error {
	c.httpClient = &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: responseTimeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
	return nil
}

// Close releases idle transport connections. PostBatch calls after Close
// are treated as contract violations and fail loudly in the logs.
func (c *Client) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
}

// batch is the export envelope wrapped around a slice of events.
type batch struct {
	BotVersion string         `json:"botVersion"`
	SentAt     time.Time      `json:"sentAt"`
	Events     []*types.Event `json:"events"`
}

// PostBatch exports the events as one batch. It returns true when the
// collector accepted the batch, and also when there was nothing to do
// (export disabled or empty batch). Every failure — validation, auth,
// transport, non-2xx — is logged and returned as false; the batch is not
// retried beyond the single 401 retry.
func (c *Client) PostBatch(ctx context.Context, events []*types.Event) bool {
	if !c.cfg.Enabled || len(events) == 0 {
		return true
	}
	if c.httpClient == nil {
		// Programming error: the lifecycle controller must start the
		// transport before any flush can run.
		slog.Error("export client used before Start, dropping batch", "events", len(events))
		return false
	}

	for _, event := range events {
		if err := event.Validate(); err != nil {
			slog.Error("invalid event in export batch",
				"correlation_id", string(event.CorrelationID),
				"error", err,
			)
			return false
		}
	}

	body, err := json.Marshal(batch{
		BotVersion: c.cfg.BotVersion,
		SentAt:     time.Now().UTC(),
		Events:     events,
	})
	if err != nil {
		slog.Error("marshal telemetry batch", "error", err)
		return false
	}

	status, err := c.post(ctx, body)
	if err != nil {
		slog.Warn("telemetry export failed", "events", len(events), "error", err)
		return false
	}
	if status == http.StatusUnauthorized {
		// Stale or revoked token: force a fresh fetch and retry once.
		c.tokens.Invalidate()
		status, err = c.post(ctx, body)
		if err != nil {
			slog.Warn("telemetry export retry failed", "events", len(events), "error", err)
			return false
		}
	}

	if status >= 200 && status < 300 {
		slog.Debug("telemetry batch exported", "events", len(events), "status", status)
		return true
	}
	slog.Warn("collector rejected telemetry batch", "events", len(events), "status", status)
	return false
}

// post performs one POST attempt and returns the response status code.
// A token fetch failure degrades to an unauthenticated request.
func (c *Client) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		slog.Warn("token fetch failed, exporting without authorization", "error", err)
	} else if token != nil {
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	// Response bodies carry only informational fields; drain for
	// connection reuse.
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
