// Package dbpedia resolves organizations and their relations against a
// SPARQL endpoint, DBpedia by default.
package dbpedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/WessleyAI/orggraph/engine/domain"
	"github.com/WessleyAI/orggraph/pkg/fn"
	"github.com/WessleyAI/orggraph/pkg/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("engine/dbpedia")

// DefaultEndpoint is the public DBpedia SPARQL endpoint.
const DefaultEndpoint = "https://dbpedia.org/sparql"

const resultsFormat = "application/sparql-results+json"

// maxBody caps how much of a response is read.
const maxBody = 32 << 20

// Config configures a Client.
type Config struct {
	Endpoint  string
	UserAgent string
	// Timeout bounds one HTTP request, not the retries around it.
	Timeout time.Duration
	// RequestsPerSecond limits raw HTTP requests, retries included.
	// Zero disables the limiter.
	RequestsPerSecond float64
	Retry             fn.RetryPolicy
	Breaker           resilience.BreakerOpts
	Logger            *slog.Logger
	HTTPClient        *http.Client
}

// DefaultConfig returns a Config for the public endpoint.
func DefaultConfig() Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		UserAgent:         "orggraph/1.0 (organization relationship crawler)",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Retry:             fn.DefaultRetry,
		Breaker:           resilience.DefaultBreakerOpts,
	}
}

// StatusError is a non-200 response from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sparql: status %d", e.Code)
	}
	return fmt.Sprintf("sparql: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Term is one bound value in a result row.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Binding maps variable names to their values; unbound variables are absent.
type Binding map[string]Term

// Value returns the value of v, or "" if unbound.
func (b Binding) Value(v string) string { return b[v].Value }

// Results is a SPARQL 1.1 JSON results document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// Client runs SELECT queries.
type Client struct {
	endpoint  string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
	retry     fn.RetryPolicy
	log       *slog.Logger
}

// NewClient creates a Client. Zero fields of cfg take DefaultConfig values.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	breakerOpts := cfg.Breaker
	if breakerOpts.Neutral == nil {
		breakerOpts.Neutral = neutral
	}
	if breakerOpts.OnStateChange == nil {
		breakerOpts.OnStateChange = func(from, to resilience.State) {
			log.Warn("sparql circuit breaker", "endpoint", cfg.Endpoint, "from", from.String(), "to", to.String())
		}
	}

	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = Retryable
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Warn("sparql request failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		}
	}

	return &Client{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		http:      hc,
		limiter:   limiter,
		breaker:   resilience.NewBreaker(breakerOpts),
		retry:     retry,
		log:       log,
	}
}

// Select runs query and decodes the result document, retrying transient
// failures according to the retry policy.
func (c *Client) Select(ctx context.Context, query string) (*Results, error) {
	ctx, span := tracer.Start(ctx, "sparql.select", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sparql.endpoint", c.endpoint)))
	defer span.End()

	res, err := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[*Results] {
		return resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[*Results] {
			return fn.FromPair(c.do(ctx, query))
		})
	}).Unwrap()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("sparql.rows", len(res.Results.Bindings)))
	return res, nil
}

func (c *Client) do(ctx context.Context, query string) (*Results, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("sparql: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("format", resultsFormat)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("sparql: %w", err)
	}
	req.Header.Set("Accept", resultsFormat)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var out Results
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("sparql: decode: %w", err)
	}
	c.log.Debug("sparql query done", "rows", len(out.Results.Bindings), "took", time.Since(start))
	return &out, nil
}

// Retryable reports whether err from a SPARQL request is transient:
// network failures, 429 and 5xx responses. Malformed responses, other
// statuses, an open circuit and context errors are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return isTimeout(err)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) {
		return false
	}
	return true
}

// isTimeout reports a per-request client timeout, as opposed to the
// caller's deadline.
func isTimeout(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

// neutral errors say nothing about endpoint health.
func neutral(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, domain.ErrInvalidIdentifier) || errors.Is(err, domain.ErrInvalidName) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusBadRequest
}
