package testutil

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"finitefield.org/loginform/internal/loginform/form"
	"finitefield.org/loginform/internal/loginform/httpserver"
	"finitefield.org/loginform/internal/loginform/users"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithFetcher overrides the user fetcher invoked on submit.
func WithFetcher(fetcher form.Fetcher) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Fetcher = fetcher
	}
}

// WithBasePath sets a custom base path for the login routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithPollWindow bounds how long state polls and plain submits wait.
func WithPollWindow(d time.Duration) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.PollWindow = d
	}
}

// WithLogger routes server logs to logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Logger = logger
	}
}

// NewServer constructs an httptest server running the login HTTP stack with sensible defaults.
// The default fetcher answers with {"id":1,"name":"John"}.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	cfg := httpserver.Config{
		Address:        ":0",
		BasePath:       "/login",
		Fetcher:        users.NewStaticFetcher(&users.User{ID: 1, Name: "John"}),
		Locale:         "en",
		FetchTimeout:   5 * time.Second,
		PollWindow:     2 * time.Second,
		PollDelay:      50 * time.Millisecond,
		CSRFCookieName: "csrf_token",
		CSRFHeaderName: "X-CSRF-Token",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts
}

// NewClient returns an HTTP client with a cookie jar so CSRF cookies round-trip.
func NewClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
	}
}
