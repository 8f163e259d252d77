package form

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oklog/ulid/v2"
)

const (
	defaultCapacity = 1024
	defaultIdleTTL  = 30 * time.Minute
)

// RegistryConfig controls how many forms stay mounted and for how long.
type RegistryConfig struct {
	Capacity int
	IdleTTL  time.Duration
	// Options are applied to every mounted form.
	Options []Option
	// OnUnmount runs after a form has been unmounted for any reason.
	OnUnmount func(id string)
	// IDGenerator names mounted forms. Defaults to ULIDs.
	IDGenerator func() string
}

// Registry tracks mounted forms. Forms idle longer than IdleTTL or pushed out by
// capacity are unmounted.
type Registry struct {
	fetcher Fetcher
	cfg     RegistryConfig
	forms   *expirable.LRU[string, *Form]
}

// NewRegistry constructs a Registry whose forms call fetcher on submit.
func NewRegistry(fetcher Fetcher, cfg RegistryConfig) (*Registry, error) {
	if fetcher == nil {
		return nil, errors.New("form: fetcher is required")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return ulid.Make().String() }
	}
	r := &Registry{
		fetcher: fetcher,
		cfg:     cfg,
	}
	r.forms = expirable.NewLRU[string, *Form](cfg.Capacity, r.evicted, cfg.IdleTTL)
	return r, nil
}

// Mount creates a fresh form with empty state.
func (r *Registry) Mount(ctx context.Context) *Form {
	id := r.cfg.IDGenerator()
	opts := append([]Option{WithParentContext(context.WithoutCancel(ctx))}, r.cfg.Options...)
	f := New(id, r.fetcher, opts...)
	r.forms.Add(id, f)
	return f
}

// Get returns the mounted form for id and refreshes its idle deadline.
func (r *Registry) Get(id string) (*Form, bool) {
	f, ok := r.forms.Get(id)
	if !ok || f == nil {
		return nil, false
	}
	if !f.Mounted() {
		r.forms.Remove(id)
		return nil, false
	}
	r.forms.Add(id, f)
	return f, true
}

// Unmount removes and unmounts the form for id. It reports whether one was mounted.
func (r *Registry) Unmount(id string) bool {
	return r.forms.Remove(id)
}

// Len returns the number of mounted forms.
func (r *Registry) Len() int {
	return r.forms.Len()
}

// Close unmounts every form. The LRU expiry goroutine keeps running until process exit.
func (r *Registry) Close() {
	r.forms.Purge()
}

func (r *Registry) evicted(id string, f *Form) {
	if f != nil {
		f.Unmount()
	}
	if r.cfg.OnUnmount != nil {
		r.cfg.OnUnmount(id)
	}
}
