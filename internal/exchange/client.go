package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
)

const (
	// DefaultBaseURL is the Hyperliquid mainnet info API.
	DefaultBaseURL = "https://api.hyperliquid.xyz"

	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is a read-only Hyperliquid info API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, e.g. testnet
// or a local fixture server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a retryable request is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates an info API client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClearinghouseState fetches the wallet's current margin summary and
// open positions.
func (c *Client) ClearinghouseState(ctx context.Context, user string) (*State, error) {
	var state State
	req := map[string]string{"type": "clearinghouseState", "user": user}
	if err := c.post(ctx, req, &state); err != nil {
		return nil, fmt.Errorf("fetch clearinghouse state: %w", err)
	}
	return &state, nil
}

// MetaAndAssetCtxs fetches the listed markets and their pricing
// context. The two slices are positionally aligned.
func (c *Client) MetaAndAssetCtxs(ctx context.Context) (*Meta, []AssetCtx, error) {
	var raw []jsoniter.RawMessage
	req := map[string]string{"type": "metaAndAssetCtxs"}
	if err := c.post(ctx, req, &raw); err != nil {
		return nil, nil, fmt.Errorf("fetch meta and asset ctxs: %w", err)
	}
	if len(raw) != 2 {
		return nil, nil, fmt.Errorf("metaAndAssetCtxs: expected 2 elements, got %d", len(raw))
	}

	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("decode meta: %w", err)
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, nil, fmt.Errorf("decode asset ctxs: %w", err)
	}
	return &meta, ctxs, nil
}

// UserFills fetches the wallet's recent trade fills, newest first.
func (c *Client) UserFills(ctx context.Context, user string) ([]FillRecord, error) {
	var fills []FillRecord
	req := map[string]string{"type": "userFills", "user": user}
	if err := c.post(ctx, req, &fills); err != nil {
		return nil, fmt.Errorf("fetch user fills: %w", err)
	}
	return fills, nil
}

// post sends one info request and decodes the response into out,
// retrying transient failures with exponential backoff.
func (c *Client) post(ctx context.Context, reqBody any, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	operation := func() error {
		return c.doOnce(ctx, payload, out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func (c *Client) doOnce(ctx context.Context, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// decoded below
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("info api status %d: %s", resp.StatusCode, body)
	default:
		return backoff.Permanent(fmt.Errorf("info api status %d: %s", resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
