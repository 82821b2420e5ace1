package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/agentchat/internal/logging"
)

// ErrFirstByteTimeout is reported when a response body stays silent too long.
var ErrFirstByteTimeout = errors.New("timed out waiting for first byte")

// Request is the body posted to an agent backend.
type Request struct {
	ChatInput string   `json:"chatInput"`
	SessionID string   `json:"sessionId"`
	UseMemory bool     `json:"useMemory"`
	Metadata  Metadata `json:"metadata"`
}

// Metadata lets the backend partition requests per install and per client.
type Metadata struct {
	Namespace string `json:"namespace"`
	Source    string `json:"source"`
}

// NetworkError describes a failed exchange with the backend.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Backend opens a streamed response for a request.
type Backend interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint         string
	Headers          map[string]string
	ConnectTimeout   time.Duration
	FirstByteTimeout time.Duration
	MaxRetries       uint64
	// BackOff builds the retry schedule for one Open call. Defaults to
	// exponential backoff with jitter.
	BackOff func() backoff.BackOff
}

// Client posts chat requests over HTTP.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.FirstByteTimeout <= 0 {
		cfg.FirstByteTimeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackOff == nil {
		cfg.BackOff = newRetryBackoff
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.FirstByteTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{cfg: cfg, http: &http.Client{Transport: transport}}
}

// newRetryBackoff creates the schedule used between connection attempts.
func newRetryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	return b
}

// Open posts req and returns the response body once headers arrive. Failed
// attempts are retried with backoff; 4xx statuses are not retried.
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var body io.ReadCloser
	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		rc, err := c.post(ctx, payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			var netErr *NetworkError
			if errors.As(err, &netErr) && netErr.StatusCode >= 400 && netErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		body = rc
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.cfg.BackOff(), c.cfg.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		logging.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retryIn", wait).
			Str("endpoint", c.cfg.Endpoint).
			Msg("backend request failed, retrying")
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}

// post makes a single attempt.
func (c *Client) post(ctx context.Context, payload []byte) (io.ReadCloser, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, &NetworkError{Op: "post", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/x-ndjson")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &NetworkError{Op: "post", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		var detail error
		if s := strings.TrimSpace(string(snippet)); s != "" {
			detail = errors.New(s)
		}
		return nil, &NetworkError{Op: "post", StatusCode: resp.StatusCode, Err: detail}
	}

	fb := &firstByteBody{body: resp.Body, cancel: cancel}
	fb.timer = time.AfterFunc(c.cfg.FirstByteTimeout, func() {
		fb.expired.Store(true)
		cancel()
	})
	return fb, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// firstByteBody cancels the request if no body bytes arrive in time.
type firstByteBody struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	timer   *time.Timer
	expired atomic.Bool
	once    sync.Once
}

func (b *firstByteBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.once.Do(func() { b.timer.Stop() })
	}
	if err != nil && err != io.EOF && b.expired.Load() {
		return n, &NetworkError{Op: "read", Err: ErrFirstByteTimeout}
	}
	return n, err
}

func (b *firstByteBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel()
	return err
}
