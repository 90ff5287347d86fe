// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/luxfi/log"
)

const (
	reencryptPath = "/reencrypt"

	// DefaultTimeout bounds a single gateway round trip.
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 4 << 20
)

// Client talks to a KMS gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request; zero or negative disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger. A nil logger is ignored.
func WithLogger(l log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the gateway at rawURL.
func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway url %q: scheme must be http or https", rawURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		log:        log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Timeout returns the per-request bound, zero when unbounded.
func (c *Client) Timeout() time.Duration {
	if c.timeout < 0 {
		return 0
	}
	return c.timeout
}

// URL returns the gateway base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// Reencrypt submits req and returns the shares of a successful response.
func (c *Client) Reencrypt(ctx context.Context, req *ReencryptRequest) ([]Share, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reencryptPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	c.log.Debug("gateway reencrypt",
		"handle", req.CiphertextHandle,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	var out ReencryptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d: %s", ErrGatewayStatus, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Status == StatusFailure {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w (%d): %s", ErrGatewayRejected, resp.StatusCode, msg)
	}
	if len(out.Response) == 0 {
		return nil, ErrNoShares
	}
	return out.Response, nil
}
