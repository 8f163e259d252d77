package users

import (
	"context"
	"errors"
)

// ErrFetchFailed is the only failure kind surfaced by a Fetcher. Network errors,
// unexpected status codes and undecodable payloads all wrap it.
var ErrFetchFailed = errors.New("users: fetch failed")

// Fetcher retrieves the user record shown after a login attempt.
type Fetcher interface {
	// FetchUser issues a single read of the configured user resource.
	FetchUser(ctx context.Context) (*User, error)
}

// User is the record returned by the user endpoint. Only ID and Name are required.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Clone returns a copy that callers may retain without sharing the original pointer.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}
