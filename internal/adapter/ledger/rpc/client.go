// Package rpc implements ports.LedgerGateway against a Solana JSON-RPC 2.0
// node, with an optional websocket endpoint for signature confirmation.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"social-custody-gateway/config"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/observability"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultMaxRetries     = 3
	defaultRetryDelay     = 500 * time.Millisecond
	defaultMaxDelay       = 5 * time.Second
	defaultBackoffMult    = 2.0
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = time.Second
	defaultCommitment     = "confirmed"
)

// Client is a ledger gateway over HTTP JSON-RPC.
type Client struct {
	endpoint       string
	wsEndpoint     string
	commitment     string
	client         *http.Client
	maxRetries     int
	retryDelay     time.Duration
	maxDelay       time.Duration
	backoffMult    float64
	confirmTimeout time.Duration
	pollInterval   time.Duration
	requestID      atomic.Uint64
	metrics        *observability.Metrics
	log            zerolog.Logger
}

var _ ports.LedgerGateway = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRetryDelay sets the initial backoff between read retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithMetrics records per-method call counts and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a gateway from ledger configuration. Zero durations fall
// back to defaults; a negative MaxRetries selects the default retry count.
func NewClient(cfg config.LedgerConfig, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:       cfg.RPCURL,
		wsEndpoint:     cfg.WSURL,
		commitment:     cfg.Commitment,
		client:         &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelay:     defaultRetryDelay,
		maxDelay:       defaultMaxDelay,
		backoffMult:    defaultBackoffMult,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		log:            log.With().Str("component", "ledger").Logger(),
	}
	if c.commitment == "" {
		c.commitment = defaultCommitment
	}
	if c.client.Timeout <= 0 {
		c.client.Timeout = defaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = defaultConfirmTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *NodeError      `json:"error,omitempty"`
}

// NodeError is an error object returned by the node.
type NodeError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// read performs an idempotent call with retries.
func (c *Client) read(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, method, params, result, c.maxRetries)
}

// write performs exactly one attempt.
func (c *Client) write(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, method, params, result, 0)
}

// call performs a JSON-RPC call. Transport failures, 429 and 5xx are retried
// up to retries times with exponential backoff; node errors never are.
func (c *Client) call(ctx context.Context, method string, params []any, result any, retries int) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRPC(method, err, time.Since(start)) }()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.log.Debug().Str("method", method).Int("attempt", attempt).Err(lastErr).Msg("retrying ledger call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var retryable bool
		retryable, lastErr = c.attempt(ctx, body, result)
		if lastErr == nil || !retryable {
			return lastErr
		}
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte, result any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("http request: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("rate limited (429)")
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return false, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return false, rpcResp.Error
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return false, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return false, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
