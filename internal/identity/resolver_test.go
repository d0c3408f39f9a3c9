package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugzilla-contrib/jbtools/internal/store"
)

type fakeUserStore struct {
	users     map[string]int64
	created   []string
	next      int64
	lookups   int
	lookupErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]int64{}, next: 1}
}

func (f *fakeUserStore) UserIDByEmail(_ context.Context, addr string) (int64, error) {
	f.lookups++
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	if id, ok := f.users[addr]; ok {
		return id, nil
	}
	return 0, store.ErrNotFound
}

func (f *fakeUserStore) CreateUser(_ context.Context, addr, name string) (int64, error) {
	id := f.next
	f.next++
	f.users[addr] = id
	f.created = append(f.created, addr+"/"+name)
	return id, nil
}

func TestCanonicalize(t *testing.T) {
	r := NewResolver(nil, "example.com", map[string]string{
		"old@example.com": "new@example.com",
	})

	tests := []struct {
		header   string
		wantAddr string
		wantName string
	}{
		{"Bob <BOB@EXAMPLE.COM>", "bob@example.com", "Bob"},
		{"alice@example.com", "alice@example.com", "alice@example.com"},
		{"carol", "carol@example.com", "carol@example.com"},
		{"build daemon", "build daemon@example.com", "build daemon@example.com"},
		{"Old Name <old@example.com>", "new@example.com", "Old Name"},
	}
	for _, tt := range tests {
		addr, name := r.Canonicalize(tt.header)
		assert.Equal(t, tt.wantAddr, addr, "header %q", tt.header)
		assert.Equal(t, tt.wantName, name, "header %q", tt.header)
	}
}

func TestResolveCreatesOnce(t *testing.T) {
	store := newFakeUserStore()
	r := NewResolver(store, "example.com", nil)
	ctx := context.Background()

	id1, err := r.Resolve(ctx, "Bob <BOB@EXAMPLE.COM>")
	require.NoError(t, err)

	// Same person under a different spelling hits the cache.
	id2, err := r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	assert.Equal(t, []string{"bob@example.com/Bob"}, store.created)
	assert.Equal(t, 1, store.lookups)
}

func TestResolveLookupFailureDoesNotCreate(t *testing.T) {
	st := newFakeUserStore()
	st.users["alice@example.com"] = 7
	st.lookupErr = errors.New("connection reset by peer")
	r := NewResolver(st, "example.com", nil)

	_, err := r.Resolve(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Empty(t, st.created, "a transient lookup failure must not insert a profile")

	// A definite miss still creates.
	st.lookupErr = nil
	id, err := r.Resolve(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, []string{"bob@example.com/bob@example.com"}, st.created)
}

func TestResolveExistingUser(t *testing.T) {
	store := newFakeUserStore()
	store.users["alice@example.com"] = 7
	r := NewResolver(store, "example.com", nil)

	id, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Empty(t, store.created)
}
