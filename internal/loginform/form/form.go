package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"finitefield.org/loginform/internal/loginform/users"
)

// ErrNotMounted is returned when an operation targets an unmounted form.
var ErrNotMounted = errors.New("form: not mounted")

// Fetcher is the outbound dependency invoked on submit.
type Fetcher interface {
	FetchUser(ctx context.Context) (*users.User, error)
}

// Transition describes one applied event. Observers receive copies.
type Transition struct {
	FormID string
	Event  string
	Before State
	After  State
}

// Observer is called after every transition, in order. It must not call back into the form.
type Observer func(Transition)

// Option customises a Form.
type Option func(*Form)

// WithObserver registers fn to run after every transition.
func WithObserver(fn Observer) Option {
	return func(f *Form) {
		if fn != nil {
			f.observers = append(f.observers, fn)
		}
	}
}

// WithFetchTimeout bounds each submit's request. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Form) {
		f.fetchTimeout = d
	}
}

// WithParentContext derives the form lifetime from ctx instead of context.Background.
func WithParentContext(ctx context.Context) Option {
	return func(f *Form) {
		if ctx != nil {
			f.parent = ctx
		}
	}
}

// Form is one mounted login form instance. All methods are safe for concurrent use.
type Form struct {
	id           string
	fetcher      Fetcher
	observers    []Observer
	fetchTimeout time.Duration
	parent       context.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	inflight  int
	unmounted bool
	changed   chan struct{}

	// notifyMu keeps observer calls in transition order.
	notifyMu sync.Mutex

	wg sync.WaitGroup
}

// New mounts a form with the given id. fetcher is required.
func New(id string, fetcher Fetcher, opts ...Option) *Form {
	if fetcher == nil {
		panic("form: fetcher is required")
	}
	f := &Form{
		id:      id,
		fetcher: fetcher,
		parent:  context.Background(),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.ctx, f.cancel = context.WithCancel(f.parent)
	return f
}

// ID returns the instance identifier.
func (f *Form) ID() string {
	return f.id
}

// Snapshot returns a copy of the current view-state.
func (f *Form) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

// Watch returns the current state together with a channel that is closed on the next
// transition or on unmount.
func (f *Form) Watch() (State, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone(), f.changed
}

// Mounted reports whether the form still accepts events.
func (f *Form) Mounted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unmounted
}

// InFlight reports the number of requests that have not settled yet.
func (f *Form) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

// SetUsername applies a username keystroke.
func (f *Form) SetUsername(value string) error {
	return f.dispatch(UsernameChanged{Value: value})
}

// SetPassword applies a password keystroke.
func (f *Form) SetPassword(value string) error {
	return f.dispatch(PasswordChanged{Value: value})
}

// Submit starts a fetch when the submit control is enabled and reports whether it did.
// The loading flag is set before Submit returns; the result is applied asynchronously.
func (f *Form) Submit() bool {
	f.mu.Lock()
	if f.unmounted || !f.state.CanSubmit() {
		f.mu.Unlock()
		return false
	}
	f.inflight++
	f.wg.Add(1)
	ctx := f.ctx
	tr := f.applyLocked(SubmitStarted{})
	f.commitLocked(tr)

	go f.run(ctx)
	return true
}

// WaitSettled blocks until no request is in flight and returns the resulting state.
func (f *Form) WaitSettled(ctx context.Context) (State, error) {
	for {
		f.mu.Lock()
		st := f.state.clone()
		pending := f.inflight
		unmounted := f.unmounted
		ch := f.changed
		f.mu.Unlock()

		if pending == 0 {
			return st, nil
		}
		if unmounted {
			return st, ErrNotMounted
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ch:
		}
	}
}

// Unmount discards the instance. In-flight requests are cancelled and their results
// dropped. Calling Unmount more than once is a no-op.
func (f *Form) Unmount() {
	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		return
	}
	f.unmounted = true
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()

	f.cancel()
}

// Wait blocks until every goroutine started by Submit has returned.
func (f *Form) Wait() {
	f.wg.Wait()
}

func (f *Form) run(ctx context.Context) {
	defer f.wg.Done()

	if f.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.fetchTimeout)
		defer cancel()
	}

	user, err := f.fetcher.FetchUser(ctx)

	f.mu.Lock()
	f.inflight--
	if f.unmounted {
		f.mu.Unlock()
		return
	}
	var ev Event = FetchSucceeded{User: user}
	if err != nil || user == nil {
		ev = FetchFailed{}
	}
	tr := f.applyLocked(ev)
	f.commitLocked(tr)
}

func (f *Form) dispatch(ev Event) error {
	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		return ErrNotMounted
	}
	tr := f.applyLocked(ev)
	f.commitLocked(tr)
	return nil
}

func (f *Form) applyLocked(ev Event) Transition {
	before := f.state
	f.state = Update(f.state, ev)
	close(f.changed)
	f.changed = make(chan struct{})
	return Transition{
		FormID: f.id,
		Event:  EventName(ev),
		Before: before.clone(),
		After:  f.state.clone(),
	}
}

// commitLocked releases f.mu and notifies observers in transition order.
func (f *Form) commitLocked(tr Transition) {
	if len(f.observers) == 0 {
		f.mu.Unlock()
		return
	}
	f.notifyMu.Lock()
	f.mu.Unlock()
	defer f.notifyMu.Unlock()
	for _, fn := range f.observers {
		fn(tr)
	}
}
