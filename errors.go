package factoring

import (
	"errors"
	"fmt"

	"github.com/xraph/factoring/pricing"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("factoring: not found")
	ErrAlreadyExists = errors.New("factoring: already exists")
	ErrInvalidParams = pricing.ErrInvalidParams
	ErrUnauthorized  = errors.New("factoring: unauthorized")
	ErrExpired       = errors.New("factoring: expired")
	ErrReadOnly      = errors.New("factoring: write attempted in read-only transaction")

	// Invoice ledger errors
	ErrInvoiceNotFound      = errors.New("factoring: invoice not found")
	ErrDuplicateInvoice     = errors.New("factoring: duplicate invoice number")
	ErrAlreadyVerified      = errors.New("factoring: invoice already verified")
	ErrNotVerified          = errors.New("factoring: invoice not verified")
	ErrAlreadyTokenized     = errors.New("factoring: invoice already tokenized")
	ErrNotTokenized         = errors.New("factoring: invoice not tokenized")
	ErrInvalidSignature     = errors.New("factoring: invalid signature")
	ErrInsufficientShares   = errors.New("factoring: insufficient shares")
	ErrInvoicePaid          = errors.New("factoring: invoice already paid")
	ErrConservationViolated = errors.New("factoring: share conservation violated")

	// Marketplace errors
	ErrListingNotFound     = errors.New("factoring: listing not found")
	ErrAlreadyListed       = errors.New("factoring: token already listed")
	ErrListingNotActive    = errors.New("factoring: listing not active")
	ErrAgreementNotFound   = errors.New("factoring: purchase agreement not found")
	ErrAgreementNotPending = errors.New("factoring: purchase agreement not pending")
	ErrNotOverdue          = errors.New("factoring: settlement deadline has not passed")
	ErrInsufficientFunds   = errors.New("factoring: insufficient funds")
	ErrSettlementFailed    = errors.New("factoring: settlement failed")

	// Swap errors
	ErrPoolNotFound          = errors.New("factoring: pool not found")
	ErrPoolDisabled          = errors.New("factoring: pool disabled")
	ErrRouteNotFound         = errors.New("factoring: route not found")
	ErrRouteConsumed         = errors.New("factoring: route already executed")
	ErrNoRoute               = errors.New("factoring: no route between tokens")
	ErrSwapNotFound          = errors.New("factoring: swap not found")
	ErrAggregatorDisabled    = errors.New("factoring: swap aggregator disabled")
	ErrChainInactive         = pricing.ErrChainInactive
	ErrSlippageTooHigh       = pricing.ErrSlippageTooHigh
	ErrInsufficientLiquidity = pricing.ErrInsufficientLiquidity

	// Discount errors
	ErrCurveNotFound    = errors.New("factoring: discount curve not found")
	ErrProposalNotFound = errors.New("factoring: discount proposal not found")
	ErrAlreadyAccepted  = errors.New("factoring: discount proposal already accepted")

	// Settings errors
	ErrSettingsNotFound = errors.New("factoring: settings not found")
)

// ValidationError represents a validation failure with details.
// It matches ErrInvalidParams under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("factoring: invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidParams) match any ValidationError.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidParams
}

func invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "factoring: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("factoring: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// SettlementError reports a settlement step that failed. When compensation of
// earlier steps also failed, Compensation holds those failures and the ledger
// may need manual reconciliation.
type SettlementError struct {
	Step         string
	Err          error
	Compensation MultiError
}

func (e *SettlementError) Error() string {
	if e.Compensation.HasErrors() {
		return fmt.Sprintf("factoring: settlement step %q failed: %v (compensation failed: %v)",
			e.Step, e.Err, e.Compensation)
	}
	return fmt.Sprintf("factoring: settlement step %q failed: %v", e.Step, e.Err)
}

func (e *SettlementError) Unwrap() []error {
	return []error{ErrSettlementFailed, e.Err}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrListingNotFound) ||
		errors.Is(err, ErrAgreementNotFound) ||
		errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrSwapNotFound) ||
		errors.Is(err, ErrCurveNotFound) ||
		errors.Is(err, ErrProposalNotFound) ||
		errors.Is(err, ErrNoRoute)
}

// IsConflict returns true if the error reports a state-uniqueness or
// state-machine violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrDuplicateInvoice) ||
		errors.Is(err, ErrAlreadyListed) ||
		errors.Is(err, ErrAlreadyVerified) ||
		errors.Is(err, ErrAlreadyTokenized) ||
		errors.Is(err, ErrAlreadyAccepted) ||
		errors.Is(err, ErrRouteConsumed) ||
		errors.Is(err, ErrNotVerified) ||
		errors.Is(err, ErrNotTokenized) ||
		errors.Is(err, ErrListingNotActive) ||
		errors.Is(err, ErrAgreementNotPending) ||
		errors.Is(err, ErrNotOverdue) ||
		errors.Is(err, ErrInvoicePaid) ||
		errors.Is(err, ErrPoolDisabled) ||
		errors.Is(err, ErrAggregatorDisabled) ||
		errors.Is(err, ErrChainInactive)
}

// IsAuthorization returns true if a capability, role or ownership check failed.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidSignature)
}

// IsInsufficient returns true if a conservation or balance check failed.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientShares) ||
		errors.Is(err, ErrInsufficientLiquidity) ||
		errors.Is(err, ErrSlippageTooHigh)
}
