package form

import "finitefield.org/loginform/internal/loginform/users"

// State is the view-state of one mounted login form. It determines everything rendered.
type State struct {
	Username string
	Password string
	Loading  bool
	Error    bool
	User     *users.User
}

// CanSubmit reports whether the submit control is enabled.
func (s State) CanSubmit() bool {
	return s.Username != "" && s.Password != ""
}

// Phase names where the form sits in its idle -> loading -> settled cycle.
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Error:
		return PhaseSettledError
	case s.User != nil:
		return PhaseSettledSuccess
	default:
		return PhaseIdle
	}
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

// Phase enumerates the observable request lifecycle states.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseLoading        Phase = "loading"
	PhaseSettledSuccess Phase = "settled-success"
	PhaseSettledError   Phase = "settled-error"
)

// Event is a user interaction or async completion applied through Update.
type Event interface {
	eventName() string
}

// UsernameChanged replaces the username value.
type UsernameChanged struct{ Value string }

// PasswordChanged replaces the password value.
type PasswordChanged struct{ Value string }

// SubmitStarted marks a request as in flight.
type SubmitStarted struct{}

// FetchSucceeded applies a fetched user.
type FetchSucceeded struct{ User *users.User }

// FetchFailed records a failed fetch.
type FetchFailed struct{}

func (UsernameChanged) eventName() string { return "username_changed" }
func (PasswordChanged) eventName() string { return "password_changed" }
func (SubmitStarted) eventName() string   { return "submit_started" }
func (FetchSucceeded) eventName() string  { return "fetch_succeeded" }
func (FetchFailed) eventName() string     { return "fetch_failed" }

// EventName returns the stable identifier used in logs.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}

// Update applies ev to s and returns the next state. It has no side effects.
//
// Loading is cleared in the same step that applies a result, and a failure never
// touches the stored user.
func Update(s State, ev Event) State {
	next := s
	switch e := ev.(type) {
	case UsernameChanged:
		next.Username = e.Value
	case PasswordChanged:
		next.Password = e.Value
	case SubmitStarted:
		if !s.CanSubmit() {
			return s
		}
		next.Loading = true
	case FetchSucceeded:
		if e.User != nil {
			next.User = e.User.Clone()
		}
		next.Error = false
		next.Loading = false
	case FetchFailed:
		next.Error = true
		next.Loading = false
	}
	return next
}
