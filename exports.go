package rental

import (
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/types"
)

// Re-export common types for convenience so users don't have to import the
// asset and types packages for everyday calls.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Address is re-exported from asset package.
type Address = asset.Address

// AssetRef is re-exported from asset package.
type AssetRef = asset.Ref

// Re-export Money constructors
var (
	ETH        = types.ETH
	USD        = types.USD
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMajor = types.ParseMajor
)

// Re-export asset helpers
var (
	NewRef   = asset.NewRef
	ParseRef = asset.ParseRef
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
