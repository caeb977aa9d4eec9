package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"golang.org/x/time/rate"
)

// Client is a JSON HTTP client bound to a base URL, optionally rate limited.
type Client struct {
	client  *http.Client
	logger  logging.Logger
	baseURL string
	limiter *rate.Limiter
	observe Observer
}

var _ IHttpClient = (*Client)(nil)

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Observer is told about every completed request; code is ErrorCode when no response arrived.
type Observer func(method, path string, code int, elapsed time.Duration)

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithObserver installs a request observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

var DefaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout: 3 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout: 3 * time.Second,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 32,
	IdleConnTimeout:     30 * time.Second,
}

func NewHttpClient(transport *http.Transport, logger logging.Logger, baseURL string, opts ...Option) *Client {
	if transport == nil {
		transport = DefaultTransport
	}
	c := &Client{
		client:  &http.Client{Transport: transport, Timeout: 30 * time.Second},
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const ErrorCode = -1

// BaseURL returns the configured base URL.
func (h *Client) BaseURL() string { return h.baseURL }

// Request sends method to baseURL+path. The response body is returned for every status code;
// err is set only when no response was read.
func (h *Client) Request(ctx context.Context, method, path string, params []KeyValue, requestBody interface{}, headers []KeyValue) (code int, respBody []byte, err error) {
	code = ErrorCode
	start := time.Now()
	defer func() {
		if h.observe != nil {
			h.observe(method, path, code, time.Since(start))
		}
	}()

	if h.baseURL == "" {
		return code, nil, fmt.Errorf("url is empty")
	}
	target, err := url.Parse(h.baseURL + path)
	if err != nil {
		return code, nil, fmt.Errorf("parse url %s: %w", h.baseURL+path, err)
	}
	if len(params) > 0 {
		q := target.Query()
		for _, p := range params {
			q.Add(p.Key, p.Value)
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if requestBody != nil {
		b, err := json.Marshal(requestBody)
		if err != nil {
			return code, nil, fmt.Errorf("build request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return code, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return code, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return code, nil, fmt.Errorf("http call %s: %w", path, err)
	}
	defer closeBody(resp, h.logger)

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return code, nil, fmt.Errorf("read body %s: %w", path, err)
	}
	code = resp.StatusCode
	return code, respBody, nil
}

func (h *Client) Get(ctx context.Context, path string, params []KeyValue) (int, []byte, error) {
	return h.Request(ctx, http.MethodGet, path, params, nil, nil)
}

func (h *Client) Post(ctx context.Context, path string, body interface{}) (int, []byte, error) {
	return h.Request(ctx, http.MethodPost, path, nil, body, nil)
}

func closeBody(resp *http.Response, logger logging.Logger) {
	if resp != nil && resp.Body != nil {
		if err := resp.Body.Close(); err != nil {
			logger.Error("response body close error: %v, req: %v", err.Error(), resp.Request.URL)
		}
	}
}
