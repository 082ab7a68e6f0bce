// Package id wraps TypeIDs for the factoring entities. Invoices, listings,
// agreements, pools, routes, swaps and discount proposals share one ID struct
// and are told apart by prefix. IDs sort by creation time, which the stores
// rely on for listing order.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Factoring entity types.
const (
	PrefixInvoice   Prefix = "inv"   // Tokenizable invoice
	PrefixListing   Prefix = "lst"   // Marketplace listing
	PrefixAgreement Prefix = "agr"   // Purchase agreement
	PrefixPool      Prefix = "pool"  // Liquidity pool
	PrefixRoute     Prefix = "rte"   // Swap route
	PrefixSwap      Prefix = "swap"  // Executed swap
	PrefixProposal  Prefix = "dprop" // Discount proposal
)

// ID is the primary identifier type for all Factoring entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "inv_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
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

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
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

// ──────────────────────────────────────────────────
// Entity aliases
// ──────────────────────────────────────────────────

// Per-entity names for ID. They are aliases, so the compiler does not tell
// them apart; the prefix is only enforced by the matching Parse*ID helper.
type (
	InvoiceID   = ID // "inv"
	ListingID   = ID // "lst"
	AgreementID = ID // "agr"
	PoolID      = ID // "pool"
	RouteID     = ID // "rte"
	SwapID      = ID // "swap"
	ProposalID  = ID // "dprop"
)

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// NewListingID generates a new unique listing ID.
func NewListingID() ID { return New(PrefixListing) }

// NewAgreementID generates a new unique agreement ID.
func NewAgreementID() ID { return New(PrefixAgreement) }

// NewPoolID generates a new unique pool ID.
func NewPoolID() ID { return New(PrefixPool) }

// NewRouteID generates a new unique route ID.
func NewRouteID() ID { return New(PrefixRoute) }

// NewSwapID generates a new unique swap ID.
func NewSwapID() ID { return New(PrefixSwap) }

// NewProposalID generates a new unique discount proposal ID.
func NewProposalID() ID { return New(PrefixProposal) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParseListingID parses a string and validates the "lst" prefix.
func ParseListingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixListing) }

// ParseAgreementID parses a string and validates the "agr" prefix.
func ParseAgreementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAgreement) }

// ParsePoolID parses a string and validates the "pool" prefix.
func ParsePoolID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPool) }

// ParseRouteID parses a string and validates the "rte" prefix.
func ParseRouteID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRoute) }

// ParseSwapID parses a string and validates the "swap" prefix.
func ParseSwapID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSwap) }

// ParseProposalID parses a string and validates the "dprop" prefix.
func ParseProposalID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProposal) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

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

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
