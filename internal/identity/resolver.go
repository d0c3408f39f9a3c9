// Package identity maps the free-form author headers found in
// JitterBug messages onto Bugzilla profile ids. Every distinct header
// resolves to exactly one canonical address, and every canonical
// address resolves to exactly one profile, created lazily on first
// sight.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bugzilla-contrib/jbtools/internal/store"
)

// UserStore is the slice of the storage layer the resolver needs.
type UserStore interface {
	UserIDByEmail(ctx context.Context, addr string) (int64, error)
	CreateUser(ctx context.Context, addr, name string) (int64, error)
}

// Resolver canonicalizes address headers and resolves them to profile
// ids, caching each result so repeated authors cost one lookup.
type Resolver struct {
	store   UserStore
	domain  string
	aliases map[string]string
	cache   map[string]int64
}

// NewResolver returns a resolver that appends domain to bare usernames
// and rewrites addresses through the alias map before lookup.
func NewResolver(store UserStore, domain string, aliases map[string]string) *Resolver {
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &Resolver{
		store:   store,
		domain:  domain,
		aliases: aliases,
		cache:   map[string]int64{},
	}
}

// Canonicalize reduces a raw From header to a canonical (address,
// display name) pair: parse out the address part, default a missing
// domain, lowercase, then apply the alias map.
func (r *Resolver) Canonicalize(header string) (addr, name string) {
	if parsed, err := mail.ParseAddress(header); err == nil {
		addr = parsed.Address
		name = parsed.Name
	} else {
		// Headers like "build daemon" or a bare login never parse as
		// an address. Treat the whole header as the mailbox.
		addr = strings.TrimSpace(header)
	}

	if !strings.Contains(addr, "@") {
		addr = addr + "@" + r.domain
	}
	addr = strings.ToLower(addr)

	if canonical, ok := r.aliases[addr]; ok {
		addr = canonical
	}
	if name == "" {
		name = addr
	}
	return addr, name
}

// Resolve returns the profile id for a raw author header, creating the
// profile on first sight.
func (r *Resolver) Resolve(ctx context.Context, header string) (int64, error) {
	addr, name := r.Canonicalize(header)

	if id, ok := r.cache[addr]; ok {
		return id, nil
	}

	// Only a definite miss may create a profile. Anything else (a
	// transient connection failure, say) must propagate, or the retry
	// would insert a duplicate row for an existing user.
	id, err := r.store.UserIDByEmail(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		id, err = r.store.CreateUser(ctx, addr, name)
		if err != nil {
			return 0, fmt.Errorf("create profile for %s: %w", addr, err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("look up profile for %s: %w", addr, err)
	}

	r.cache[addr] = id
	return id, nil
}
