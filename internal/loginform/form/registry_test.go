package form

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/loginform/internal/loginform/users"
)

func TestRegistryMountGetUnmount(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		unmounted []string
	)
	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{
		OnUnmount: func(id string) {
			mu.Lock()
			unmounted = append(unmounted, id)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	a := reg.Mount(context.Background())
	b := reg.Mount(context.Background())
	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, 2, reg.Len())

	got, ok := reg.Get(a.ID())
	require.True(t, ok)
	require.Same(t, a, got)

	require.True(t, reg.Unmount(a.ID()))
	require.False(t, a.Mounted())
	_, ok = reg.Get(a.ID())
	require.False(t, ok)
	require.False(t, reg.Unmount(a.ID()))

	mu.Lock()
	require.Equal(t, []string{a.ID()}, unmounted)
	mu.Unlock()

	reg.Close()
	require.False(t, b.Mounted())
	require.Equal(t, 0, reg.Len())
}

func TestRegistryRemountStartsFresh(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	first := reg.Mount(context.Background())
	require.NoError(t, first.SetUsername("test"))
	reg.Unmount(first.ID())

	second := reg.Mount(context.Background())
	require.Empty(t, second.Snapshot().Username)
}

func TestRegistryCapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{Capacity: 1})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	first := reg.Mount(context.Background())
	second := reg.Mount(context.Background())

	require.False(t, first.Mounted())
	require.True(t, second.Mounted())
	require.Equal(t, 1, reg.Len())
}

func TestRegistryIdleExpiry(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{IdleTTL: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	f := reg.Mount(context.Background())
	require.True(t, f.Mounted())

	// Get renews the idle deadline, so the form must sit untouched until swept.
	require.Eventually(t, func() bool {
		return !f.Mounted() && reg.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := reg.Get(f.ID())
	require.False(t, ok)
	require.ErrorIs(t, f.SetUsername("late"), ErrNotMounted)
}

func TestRegistryGetRenewsIdleDeadline(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{IdleTTL: 200 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	f := reg.Mount(context.Background())
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, ok := reg.Get(f.ID())
		require.True(t, ok, "an active form must not expire")
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, f.Mounted())
}

func TestRegistryAppliesOptions(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []string
	)
	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{
		Options: []Option{WithObserver(func(tr Transition) {
			mu.Lock()
			events = append(events, tr.Event)
			mu.Unlock()
		})},
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	f := reg.Mount(context.Background())
	require.NoError(t, f.SetUsername("x"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"username_changed"}, events)
}

func TestNewRegistryRequiresFetcher(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(nil, RegistryConfig{})
	require.Error(t, err)
}

func TestRegistryIDGenerator(t *testing.T) {
	t.Parallel()

	next := 0
	reg, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{
		IDGenerator: func() string {
			next++
			return fmt.Sprintf("form-%d", next)
		},
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	require.Equal(t, "form-1", reg.Mount(context.Background()).ID())
	require.Equal(t, "form-2", reg.Mount(context.Background()).ID())

	def, err := NewRegistry(users.NewStaticFetcher(nil), RegistryConfig{})
	require.NoError(t, err)
	t.Cleanup(def.Close)
	require.Len(t, def.Mount(context.Background()).ID(), 26, "default ids are ULIDs")
}
