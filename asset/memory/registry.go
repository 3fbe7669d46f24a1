// Package memory provides an in-process asset.Registry for tests and
// local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/rental/asset"
)

// Registry errors.
var (
	ErrUnknownCollection = errors.New("registry: unknown collection")
	ErrUnknownToken      = errors.New("registry: unknown token")
	ErrNotHolder         = errors.New("registry: transfer from non-holder")
	ErrTimeBoundless     = errors.New("registry: collection has no time-bound usage")
)

type token struct {
	owner   asset.Address
	user    asset.Address
	expires time.Time
}

type collection struct {
	timeBound bool
	approvals map[asset.Address]map[asset.Address]bool // owner -> operator -> approved
}

// Registry keeps collections, tokens and usage grants in memory.
type Registry struct {
	mu          sync.RWMutex
	now         func() time.Time
	collections map[asset.Address]*collection
	tokens      map[string]*token
	failure     error
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		now:         time.Now,
		collections: make(map[asset.Address]*collection),
		tokens:      make(map[string]*token),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetFailure makes TransferCustody and GrantUsageRight return err until
// cleared with nil.
func (r *Registry) SetFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err
}

// AddCollection registers a collection.
func (r *Registry) AddCollection(addr asset.Address, timeBound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[addr.Normalize()] = &collection{
		timeBound: timeBound,
		approvals: make(map[asset.Address]map[asset.Address]bool),
	}
}

// Mint creates ref held by owner. The collection must exist.
func (r *Registry) Mint(ref asset.Ref, owner asset.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref = ref.Normalize()
	if _, ok := r.collections[ref.Collection]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, ref.Collection)
	}
	r.tokens[ref.Key()] = &token{owner: owner.Normalize()}
	return nil
}

// SetApprovalForAll sets operator's approval over owner's assets in a collection.
func (r *Registry) SetApprovalForAll(collectionAddr, owner, operator asset.Address, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[collectionAddr.Normalize()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collectionAddr)
	}
	owner = owner.Normalize()
	if c.approvals[owner] == nil {
		c.approvals[owner] = make(map[asset.Address]bool)
	}
	c.approvals[owner][operator.Normalize()] = approved
	return nil
}

// OwnerOf implements asset.Registry.
func (r *Registry) OwnerOf(_ context.Context, ref asset.Ref) (asset.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[ref.Key()]
	if !ok {
		return asset.ZeroAddress, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	return t.owner, nil
}

// IsApprovedForAll implements asset.Registry.
func (r *Registry) IsApprovedForAll(_ context.Context, collectionAddr, owner, operator asset.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[collectionAddr.Normalize()]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCollection, collectionAddr)
	}
	return c.approvals[owner.Normalize()][operator.Normalize()], nil
}

// TransferCustody implements asset.Registry. Any usage grant is cleared.
func (r *Registry) TransferCustody(_ context.Context, ref asset.Ref, from, to asset.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return r.failure
	}
	t, ok := r.tokens[ref.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	if !t.owner.Equal(from) {
		return fmt.Errorf("%w: %s holds %s", ErrNotHolder, t.owner, ref)
	}
	t.owner = to.Normalize()
	t.user = ""
	t.expires = time.Time{}
	return nil
}

// GrantUsageRight implements asset.Registry.
func (r *Registry) GrantUsageRight(_ context.Context, ref asset.Ref, user asset.Address, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return r.failure
	}
	c, ok := r.collections[ref.Collection.Normalize()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, ref.Collection)
	}
	if !c.timeBound {
		return ErrTimeBoundless
	}
	t, ok := r.tokens[ref.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	t.user = user.Normalize()
	t.expires = expires
	return nil
}

// CurrentUsageHolder implements asset.Registry.
func (r *Registry) CurrentUsageHolder(_ context.Context, ref asset.Ref) (asset.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[ref.Key()]
	if !ok {
		return asset.ZeroAddress, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	if t.user.IsZero() || r.now().After(t.expires) {
		return asset.ZeroAddress, nil
	}
	return t.user, nil
}

// SupportsTimeBoundUsage implements asset.Registry. Unknown collections
// report false rather than an error.
func (r *Registry) SupportsTimeBoundUsage(_ context.Context, collectionAddr asset.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[collectionAddr.Normalize()]
	return ok && c.timeBound, nil
}
