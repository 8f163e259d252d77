package users

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultEndpoint is the demo resource requested on every login attempt.
const DefaultEndpoint = "https://jsonplaceholder.typicode.com/users/1"

const maxBodyBytes = 1 << 20

var tracer = otel.Tracer("finitefield.org/loginform/internal/loginform/users")

// HTTPClient matches the subset of http.Client used by HTTPFetcher.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPFetcher implements Fetcher with a GET against a fixed endpoint.
type HTTPFetcher struct {
	endpoint *url.URL
	client   HTTPClient
}

// NewHTTPFetcher constructs a Fetcher for endpoint. A nil client defaults to an
// http.Client with the supplied timeout (or no timeout when timeout <= 0).
func NewHTTPFetcher(endpoint string, client HTTPClient, timeout time.Duration) (*HTTPFetcher, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("users: endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("users: parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("users: unsupported endpoint scheme %q", parsed.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{
		endpoint: parsed,
		client:   client,
	}, nil
}

// Endpoint returns the resolved endpoint URL.
func (f *HTTPFetcher) Endpoint() string {
	return f.endpoint.String()
}

// FetchUser performs the request. Every failure wraps ErrFetchFailed.
func (f *HTTPFetcher) FetchUser(ctx context.Context) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "users.FetchUser", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", f.endpoint.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("users: build request: %v: %w", err, ErrFetchFailed)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("users: request failed: %v: %w", err, ErrFetchFailed)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("users: unexpected status %d: %w", resp.StatusCode, ErrFetchFailed)
	}

	return decodeUser(io.LimitReader(resp.Body, maxBodyBytes))
}

func decodeUser(r io.Reader) (*User, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("users: read body: %v: %w", err, ErrFetchFailed)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("users: body is not a JSON object: %w", ErrFetchFailed)
	}

	var payload User
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("users: decode user: %v: %w", err, ErrFetchFailed)
	}
	return &payload, nil
}
