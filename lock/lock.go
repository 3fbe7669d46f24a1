// Package lock provides the serialization point for state-changing
// operations. Every write holds the Locker for its whole duration.
package lock

import (
	"context"
	"sync"
)

// Locker serializes writers. Unlock releases what Lock acquired.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Local is an in-process Locker. It holds a one-slot channel rather than a
// sync.Mutex so a waiter can give up when its context ends.
type Local struct {
	ch chan struct{}
}

var _ Locker = (*Local)(nil)

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{ch: make(chan struct{}, 1)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
