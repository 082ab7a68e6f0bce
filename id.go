package factoring

import "github.com/xraph/factoring/id"

// ID is the primary identifier type for all Factoring entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
