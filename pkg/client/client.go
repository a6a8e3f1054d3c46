// Package client is a typed HTTP client for the arc-contract API.
package client

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

	"github.com/google/uuid"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
	"github.com/gezibash/arc-contract/pkg/logging"
)

// Client calls a contract service.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logging.Logger
}

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithTimeout bounds every request. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithLogger logs each request at debug level.
func WithLogger(l *logging.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = l }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	cfg := clientConfig{timeout: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.logger == nil {
		cfg.logger = logging.New(nil)
	}
	return &Client{base: u, http: cfg.httpClient, log: cfg.logger.WithComponent("contract-client")}, nil
}

// APIError is a failed response decoded from the error envelope. It
// matches the shared sentinel of its code under errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return arcerrors.FromKind(e.Code) }

type envelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// request is one API call. accept lists non-2xx statuses whose body is
// still decoded into out instead of being treated as an error.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	accept []int
}

func (c *Client) do(ctx context.Context, r request) (int, error) {
	u := c.base.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return 0, err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.log.WithRequestID(reqID).Call(ctx, r.method, u.Path, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	ok := resp.StatusCode < 300
	for _, s := range r.accept {
		ok = ok || resp.StatusCode == s
	}
	if !ok {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
			apiErr.Message, apiErr.Code = env.Error.Message, env.Error.Code
		}
		return resp.StatusCode, apiErr
	}
	if r.out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, r.out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
