// Package asset defines asset identity and the Asset Registry capability
// the rental engine relies on for ownership, custody and usage rights.
package asset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Address is an account or collection address. Comparison is
// case-insensitive, so always compare normalized values.
type Address string

// ZeroAddress is the canonical "no one" address.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// Normalize lowercases and trims a.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// IsZero reports whether a is empty or the zero address.
func (a Address) IsZero() bool {
	n := a.Normalize()
	return n == "" || n == ZeroAddress
}

// Equal compares two addresses case-insensitively.
func (a Address) Equal(b Address) bool {
	return a.Normalize() == b.Normalize()
}

// String implements fmt.Stringer.
func (a Address) String() string { return string(a.Normalize()) }

// TokenID identifies a token within a collection.
type TokenID uint64

// String implements fmt.Stringer.
func (t TokenID) String() string { return strconv.FormatUint(uint64(t), 10) }

// Ref names one asset: a token within a collection.
type Ref struct {
	Collection Address `json:"collection"`
	TokenID    TokenID `json:"token_id"`
}

// NewRef builds a normalized Ref.
func NewRef(collection Address, tokenID TokenID) Ref {
	return Ref{Collection: collection.Normalize(), TokenID: tokenID}
}

// Normalize returns r with a normalized collection address.
func (r Ref) Normalize() Ref { return NewRef(r.Collection, r.TokenID) }

// IsZero reports whether r names no asset.
func (r Ref) IsZero() bool { return r.Collection.IsZero() }

// Key is a stable map and index key for r.
func (r Ref) Key() string { return string(r.Collection.Normalize()) + "/" + r.TokenID.String() }

// String implements fmt.Stringer.
func (r Ref) String() string { return r.Key() }

// ParseRef parses "collection/tokenId".
func ParseRef(s string) (Ref, error) {
	collection, token, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || collection == "" {
		return Ref{}, fmt.Errorf("asset: parse ref %q: want collection/tokenId", s)
	}
	n, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("asset: parse ref %q: %w", s, err)
	}
	return NewRef(Address(collection), TokenID(n)), nil
}

// Registry is the external authority over asset ownership, operator
// approvals, custody transfers and time-bound usage rights.
type Registry interface {
	// OwnerOf returns the current holder of ref.
	OwnerOf(ctx context.Context, ref Ref) (Address, error)

	// IsApprovedForAll reports whether operator may move every asset
	// owner holds in collection.
	IsApprovedForAll(ctx context.Context, collection, owner, operator Address) (bool, error)

	// TransferCustody moves ref from one holder to another.
	TransferCustody(ctx context.Context, ref Ref, from, to Address) error

	// GrantUsageRight lets user use ref until expires.
	GrantUsageRight(ctx context.Context, ref Ref, user Address, expires time.Time) error

	// CurrentUsageHolder returns the user of ref, or the zero address when
	// no right is granted or the grant has expired.
	CurrentUsageHolder(ctx context.Context, ref Ref) (Address, error)

	// SupportsTimeBoundUsage reports whether collection implements
	// time-bound usage rights.
	SupportsTimeBoundUsage(ctx context.Context, collection Address) (bool, error)
}
