// Package client contains thin typed clients for the upstream AgriLink REST
// services. Every request carries the bearer token of the calling browser
// session, taken from the request context.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned when an upstream service answers 401.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx upstream response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return "upstream " + http.StatusText(e.Status) + ": " + e.Message
}

type scopeKey struct{}

type scope struct {
	partition string
	token     string
}

// WithSession returns a context carrying the browser partition and its bearer
// token. An empty token sends no Authorization header.
func WithSession(ctx context.Context, partition, token string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{partition: partition, token: token})
}

// SessionFrom returns the partition and token stored by WithSession.
func SessionFrom(ctx context.Context) (partition, token string) {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s.partition, s.token
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// OnUnauthorized is invoked with the request context whenever an upstream
	// service answers 401, before ErrUnauthorized is returned.
	OnUnauthorized func(ctx context.Context)
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client performs JSON requests against a single upstream service.
type Client struct {
	base           *url.URL
	http           *http.Client
	onUnauthorized func(ctx context.Context)
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	wrapped := *hc
	wrapped.Transport = otelhttp.NewTransport(base, otelOpts...)

	return &Client{
		base:           u,
		http:           &wrapped,
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do performs a request. A nil body sends no payload; a nil out discards the
// response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if _, token := SessionFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		zctx.From(ctx).Info("Upstream rejected session token",
			zap.String("method", method),
			zap.String("path", path),
		)
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// errorMessage extracts a human readable message from an error response. The
// upstream services answer either {"message": ...} or {"error": ...}.
func errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" && len(msg) < 256 {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
