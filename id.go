package rental

import "github.com/xraph/rental/id"

// ID is the primary identifier type for all rental entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
