package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"purchases/internal/infrastructure/breaker"
	"purchases/internal/infrastructure/metrics"
)

const maxResponseBytes = 1 << 20

// TokenSource supplies the bearer token sent to downstream services.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Refresh returns a token to use instead of rejected.
	Refresh(ctx context.Context, rejected string) (string, error)
}

type Options struct {
	Dependency  string
	BaseURL     string
	ServiceName string
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// Client is the shared HTTP plumbing behind the typed downstream clients.
// Every exchange goes through the dependency's breaker; a 401 triggers one
// token refresh and one retry, nothing else is retried.
type Client struct {
	dependency string
	baseURL    string
	service    string
	http       *http.Client
	tokens     TokenSource
	breaker    *breaker.Breaker
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(opts Options, tokens TokenSource, b *breaker.Breaker, logger *zap.Logger, m *metrics.Metrics) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		dependency: opts.Dependency,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		service:    opts.ServiceName,
		http:       &http.Client{Timeout: timeout, Transport: opts.Transport},
		tokens:     tokens,
		breaker:    b,
		logger:     logger.With(zap.String("dependency", opts.Dependency)),
		metrics:    m,
	}
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Do performs the exchange. A non-nil error means no usable answer was
// received (open breaker, token failure, transport error or timeout); any HTTP
// status is returned as a Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request body: %w", c.dependency, err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.observe("token_error")
		return nil, fmt.Errorf("obtaining token for %s: %w", c.dependency, err)
	}

	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Info("downstream rejected token, refreshing", zap.String("path", req.Path))
		token, err = c.tokens.Refresh(ctx, token)
		if err != nil {
			c.observe("token_error")
			return nil, fmt.Errorf("refreshing token for %s: %w", c.dependency, err)
		}
		resp, err = c.send(ctx, req, body, token)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.dependency, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Service-Name", c.service)
	httpReq.Header.Set("User-Agent", c.service+"/1.0.0")
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	var resp *Response
	err = c.breaker.Execute(func() error {
		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		resp = &Response{StatusCode: httpResp.StatusCode, Body: data}
		return nil
	})

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			c.observe("breaker_open")
			c.logger.Warn("downstream call rejected by open breaker", fields...)
		} else {
			c.observe("transport_error")
			c.logger.Warn("downstream call failed", append(fields, zap.Error(err))...)
		}
		return nil, err
	}

	c.observe(strconv.Itoa(resp.StatusCode/100) + "xx")
	c.logger.Debug("downstream call completed", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.DownstreamCalls.WithLabelValues(c.dependency, outcome).Inc()
	}
}

// Decode unmarshals a response body into T.
func Decode[T any](resp *Response) (T, error) {
	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return v, fmt.Errorf("decoding response: %w", err)
	}
	return v, nil
}

// StaticToken is a TokenSource that always returns the same token. It is used
// when outbound authentication is disabled.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

func (s StaticToken) Refresh(context.Context, string) (string, error) {
	return string(s), nil
}
