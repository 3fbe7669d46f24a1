package rental

import (
	"context"

	"github.com/xraph/rental/asset"
)

type callerKey struct{}

// WithCaller returns a context that carries the acting address.
// Engine operations read the caller from the context.
func WithCaller(ctx context.Context, addr asset.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr.Normalize())
}

// CallerFrom returns the address stored by WithCaller.
func CallerFrom(ctx context.Context) (asset.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(asset.Address)
	if !ok || addr.IsZero() {
		return "", false
	}
	return addr, true
}

func callerOf(ctx context.Context) (asset.Address, error) {
	addr, ok := CallerFrom(ctx)
	if !ok {
		return "", ErrMissingCaller
	}
	return addr, nil
}
