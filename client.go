package ulroy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/json"
	"github.com/ulroy-ai/ulroy-go/internal/poll"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL        = "https://www.ulroy.com/api/v1"
	DefaultRequestTimeout = 30 * time.Second
	DefaultUserAgent      = "ulroy-go/0.1.0"

	tracerName = "github.com/ulroy-ai/ulroy-go"
)

// Client talks to the Ulroy API. Waits started through it block the calling
// goroutine between polls; see Async for the suspendable variant.
type Client struct {
	apiKey    string
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
	tracer    trace.Tracer
	loop      poll.Loop
	closed    *atomic.Bool

	Indexes   *IndexService
	Documents *DocumentService
	Tasks     *TaskService
}

type Option func(*Client) error

func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(strings.TrimRight(raw, "/"))
		if err != nil {
			return fmt.Errorf("invalid base url %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url %q: scheme and host are required", raw)
		}
		c.baseURL = u
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its connection pool is
// shared by every call made through the Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.http = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout. It does not bound task waits.
// It applies whatever the position of WithHTTPClient, and never modifies a
// client passed there.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// withLoop swaps the poll primitives. Tests use it to run waits on a fake clock.
func withLoop(loop poll.Loop) Option {
	return func(c *Client) error {
		c.loop = loop
		return nil
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("ulroy: api key is required")
	}

	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		apiKey:    apiKey,
		baseURL:   base,
		http:      &http.Client{Timeout: DefaultRequestTimeout},
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer(tracerName),
		loop:      poll.Loop{Sleep: poll.Block},
		closed:    &atomic.Bool{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ulroy: %w", err)
		}
	}
	if c.timeout > 0 && c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	c.bindServices()

	return c, nil
}

func (c *Client) bindServices() {
	c.Indexes = &IndexService{c: c}
	c.Documents = &DocumentService{c: c}
	c.Tasks = &TaskService{c: c}
}

// clone returns a Client sharing the transport and closed state of c but
// polling with a different loop.
func (c *Client) clone(loop poll.Loop) *Client {
	cp := &Client{
		apiKey:    c.apiKey,
		baseURL:   c.baseURL,
		http:      c.http,
		userAgent: c.userAgent,
		logger:    c.logger,
		tracer:    c.tracer,
		loop:      loop,
		closed:    c.closed,
	}
	cp.bindServices()
	return cp
}

// HTTPClient exposes the underlying client, mostly for transport mocks.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Close releases idle connections. Calls made after Close fail with
// ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

type request struct {
	op     string
	method string
	path   []string
	query  url.Values
	body   any
}

func (c *Client) endpoint(segments []string, query url.Values) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL.JoinPath(escaped...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	ctx, span := c.tracer.Start(ctx, "ulroy."+r.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, err := json.Encode(r.body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", r.op, err)
	}

	endpoint := c.endpoint(r.path, r.query)
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", r.op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	span.SetAttributes(
		attribute.String("http.request.method", r.method),
		attribute.String("url.full", endpoint),
		attribute.String("ulroy.request_id", requestID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.DebugContext(ctx, "Request failed", "op", r.op, "method", r.method, "url", endpoint, "error", err)
		return fmt.Errorf("%s %s: %w", r.method, endpoint, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "Request completed",
		"op", r.op,
		"method", r.method,
		"url", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := newAPIError(resp.StatusCode, raw, requestID)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", r.op, err)
	}
	if err := json.Decode(bytes.NewReader(raw), out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.op, err)
	}
	return nil
}

func pageQuery(opts ListOptions) url.Values {
	page, perPage := opts.Page, opts.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	return q
}
