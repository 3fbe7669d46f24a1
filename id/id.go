// Package id defines TypeID-based identifiers for rental records.
//
// Listings, bookings, earnings and payouts each carry an ID whose prefix
// names the record kind. IDs are K-sortable (UUIDv7-based) and render as
// "prefix_suffix", which keeps them readable in logs and event payloads.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record kind encoded in a TypeID.
type Prefix string

// Known prefixes.
const (
	PrefixListing Prefix = "lst"
	PrefixBooking Prefix = "bkg"
	PrefixEarning Prefix = "ern"
	PrefixPayout  Prefix = "pay"
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. It panics on an invalid prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// NewListingID returns a fresh listing ID.
func NewListingID() ID { return New(PrefixListing) }

// NewBookingID returns a fresh booking ID.
func NewBookingID() ID { return New(PrefixBooking) }

// NewEarningID returns a fresh earning ID.
func NewEarningID() ID { return New(PrefixEarning) }

// NewPayoutID returns a fresh payout ID.
func NewPayoutID() ID { return New(PrefixPayout) }

// Parse parses any "prefix_suffix" string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ParseListingID parses a listing ID.
func ParseListingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixListing) }

// ParseBookingID parses a booking ID.
func ParseBookingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBooking) }

// ParseEarningID parses an earning ID.
func ParseEarningID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEarning) }

// ParsePayoutID parses a payout ID.
func ParsePayoutID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayout) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
