package users

import (
	"context"
	"sync"
	"time"
)

// StaticFetcher returns a canned user (or error) without touching the network.
// Handy for local development and tests.
type StaticFetcher struct {
	mu    sync.Mutex
	user  *User
	err   error
	delay time.Duration
	calls int
}

// NewStaticFetcher builds a fetcher that always returns user. A nil user yields the
// demo record {1, "Leanne Graham"}.
func NewStaticFetcher(user *User) *StaticFetcher {
	if user == nil {
		user = &User{ID: 1, Name: "Leanne Graham", Username: "Bret", Email: "Sincere@april.biz"}
	}
	return &StaticFetcher{user: user.Clone()}
}

// SetUser replaces the returned user and clears any configured failure.
func (s *StaticFetcher) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user.Clone()
	s.err = nil
}

// Fail makes subsequent calls return err wrapped as ErrFetchFailed. A nil err restores success.
func (s *StaticFetcher) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetDelay makes each call wait d before answering (or until ctx is done).
func (s *StaticFetcher) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls reports how many fetches were issued.
func (s *StaticFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FetchUser implements Fetcher.
func (s *StaticFetcher) FetchUser(ctx context.Context) (*User, error) {
	s.mu.Lock()
	s.calls++
	delay := s.delay
	user := s.user.Clone()
	failure := s.err
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, wrapFailure(ctx.Err())
		case <-timer.C:
		}
	}
	if failure != nil {
		return nil, wrapFailure(failure)
	}
	return user, nil
}

func wrapFailure(err error) error {
	return &fetchError{err: err}
}

type fetchError struct {
	err error
}

func (e *fetchError) Error() string {
	return "users: fetch failed: " + e.err.Error()
}

func (e *fetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.err}
}
