package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_FetchUser(t *testing.T) {
	t.Parallel()

	var gotMethod, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"John","username":"jdoe","address":{"city":"Gwenborough"}}`))
	}))
	t.Cleanup(ts.Close)

	fetcher, err := NewHTTPFetcher(ts.URL+"/users/1", ts.Client(), 0)
	require.NoError(t, err)

	user, err := fetcher.FetchUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, gotMethod)
	require.Equal(t, "application/json", gotAccept)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "John", user.Name)
	require.Equal(t, "jdoe", user.Username)
}

func TestHTTPFetcher_AcceptsAny2xx(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":7,"name":"Ada"}`))
	}))
	t.Cleanup(ts.Close)

	fetcher, err := NewHTTPFetcher(ts.URL, ts.Client(), 0)
	require.NoError(t, err)

	user, err := fetcher.FetchUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ada", user.Name)
}

func TestHTTPFetcher_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":`))
			},
		},
		{
			name: "array body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"id":1,"name":"John"}]`))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(tc.handler)
			t.Cleanup(ts.Close)

			fetcher, err := NewHTTPFetcher(ts.URL, ts.Client(), 0)
			require.NoError(t, err)

			user, err := fetcher.FetchUser(context.Background())
			require.Nil(t, user)
			require.ErrorIs(t, err, ErrFetchFailed)
		})
	}
}

func TestHTTPFetcher_NetworkFailureAndTimeout(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		endpoint := ts.URL
		ts.Close()

		fetcher, err := NewHTTPFetcher(endpoint, nil, time.Second)
		require.NoError(t, err)

		_, err = fetcher.FetchUser(context.Background())
		require.ErrorIs(t, err, ErrFetchFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(ts.Close)
		t.Cleanup(func() { close(release) })

		fetcher, err := NewHTTPFetcher(ts.URL, nil, 50*time.Millisecond)
		require.NoError(t, err)

		_, err = fetcher.FetchUser(context.Background())
		require.ErrorIs(t, err, ErrFetchFailed)
	})
}

func TestNewHTTPFetcher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPFetcher("  ", nil, 0)
	require.Error(t, err)

	_, err = NewHTTPFetcher("ftp://example.com/users/1", nil, 0)
	require.Error(t, err)

	fetcher, err := NewHTTPFetcher(DefaultEndpoint, nil, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, fetcher.Endpoint())
}

func TestStaticFetcher(t *testing.T) {
	t.Parallel()

	fetcher := NewStaticFetcher(&User{ID: 1, Name: "John"})
	user, err := fetcher.FetchUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "John", user.Name)

	fetcher.Fail(errors.New("offline"))
	_, err = fetcher.FetchUser(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Equal(t, 2, fetcher.Calls())

	fetcher.SetUser(&User{ID: 2, Name: "Jane"})
	user, err = fetcher.FetchUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Jane", user.Name)

	fetcher.SetDelay(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.FetchUser(ctx)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, context.Canceled)
}
