// Package rest is the JSON client used to reach the external business APIs.
// Every non-2xx answer is normalized into *errx.APIError carrying a message
// that is safe to show to the end user.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	errx "github.com/Chative-core-poc-v1/draftflow/internal/core/error"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

const maxBodyBytes = 4 << 20

// Request carries the optional query parameters and JSON body of a call.
type Request struct {
	Params url.Values
	Body   any
}

// Response is a successful answer.
type Response struct {
	Status int
	Data   json.RawMessage
}

// Doer performs one HTTP call against an absolute URL.
type Doer interface {
	Do(ctx context.Context, method, rawURL string, req Request) (*Response, error)
}

type Config struct {
	BaseURL        string `envconfig:"API_BASE_URL" required:"true"`
	Token          string `envconfig:"API_TOKEN"`
	TimeoutSeconds int    `envconfig:"API_TIMEOUT_SECONDS" default:"15"`
	MaxRetries     int    `envconfig:"API_MAX_RETRIES" default:"2"`
}

// Client is a Doer over net/http. Idempotent GETs are retried with
// exponential backoff on network errors, 429 and 5xx.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	maxRetries uint64
	newBackoff func() backoff.BackOff
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackoff replaces the retry schedule of GET requests.
func WithBackoff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackoff = f }
}

func New(cfg Config, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: uint64(retries),
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs the call, retrying GETs on temporary failures.
func (c *Client) Do(ctx context.Context, method, rawURL string, req Request) (*Response, error) {
	if method != http.MethodGet || c.maxRetries == 0 {
		return c.once(ctx, method, rawURL, req)
	}

	var resp *Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		r, err := c.once(ctx, method, rawURL, req)
		if err == nil {
			resp = r
			return nil
		}
		var apiErr *errx.APIError
		if ctx.Err() == nil && errors.As(err, &apiErr) && apiErr.Temporary() {
			logx.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("retrying api call")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(c.newBackoff(), c.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) once(ctx context.Context, method, rawURL string, req Request) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		logx.Error().Err(err).Str("method", method).Str("url", u.Redacted()).Msg("api request failed")
		return nil, &errx.APIError{
			Key:         "network_error",
			UserMessage: userMessageFor(0),
			Err:         err,
		}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errx.APIError{
			StatusCode:  httpResp.StatusCode,
			Key:         "read_error",
			UserMessage: userMessageFor(0),
			Err:         err,
		}
	}

	logx.Debug().
		Str("method", method).
		Str("url", u.Redacted()).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := normalize(httpResp.StatusCode, data)
		logx.Error().Err(apiErr).Str("method", method).Str("url", u.Redacted()).Msg("api returned an error")
		return nil, apiErr
	}
	return &Response{Status: httpResp.StatusCode, Data: data}, nil
}

// normalize turns an error body into an APIError. Only the fields meant for
// humans are kept; the raw body stays in the wrapped error for the logs.
func normalize(status int, body []byte) *errx.APIError {
	apiErr := &errx.APIError{
		StatusCode:  status,
		UserMessage: userMessageFor(status),
		Err:         fmt.Errorf("http %d: %s", status, snippet(body)),
	}
	if !gjson.ValidBytes(body) {
		return apiErr
	}
	res := gjson.ParseBytes(body)
	apiErr.Key = firstString(res, "key", "code", "error.key", "error.code")
	apiErr.Identifier = firstString(res, "identifier", "error.identifier", "field")
	if msg := firstString(res, "userMessage", "error.userMessage"); msg != "" {
		apiErr.UserMessage = msg
	}
	return apiErr
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func userMessageFor(status int) string {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return "Alguns dados não foram aceitos. Confira as informações e tente novamente."
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "Não tenho permissão para realizar essa operação."
	case status == http.StatusNotFound:
		return "Não encontrei esse registro."
	case status == http.StatusConflict:
		return "Esse registro já existe ou foi alterado por outra pessoa."
	default:
		return "O serviço está indisponível no momento. Tente novamente em instantes."
	}
}

var _ Doer = (*Client)(nil)
