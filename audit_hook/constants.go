package audithook

// Action constants for audit events.
const (
	// Invoice actions
	ActionInvoiceCreated    = "invoice.created"
	ActionInvoiceVerified   = "invoice.verified"
	ActionInvoiceTokenized  = "invoice.tokenized"
	ActionSharesTransferred = "invoice.shares_transferred"
	ActionInvoicePaid       = "invoice.paid"

	// Marketplace actions
	ActionListingCreated      = "listing.created"
	ActionListingCancelled    = "listing.cancelled"
	ActionListingExpired      = "listing.expired"
	ActionAgreementCreated    = "agreement.created"
	ActionSettlementCompleted = "settlement.completed"
	ActionSettlementFailed    = "settlement.failed"
	ActionAgreementDefaulted  = "agreement.defaulted"

	// Swap actions
	ActionPoolCreated       = "pool.created"
	ActionReservesUpdated   = "pool.reserves_updated"
	ActionPoolStatusChanged = "pool.status_changed"
	ActionSwapExecuted      = "swap.executed"

	// Discount actions
	ActionDiscountProposed = "discount.proposed"
	ActionDiscountAccepted = "discount.accepted"
)

// Resource constants for audit events.
const (
	ResourceInvoice   = "invoice"
	ResourceListing   = "listing"
	ResourceAgreement = "agreement"
	ResourcePool      = "pool"
	ResourceSwap      = "swap"
	ResourceProposal  = "discount_proposal"
)

// Category constants for audit events.
const (
	CategoryIssuance    = "issuance"
	CategoryMarketplace = "marketplace"
	CategorySettlement  = "settlement"
	CategoryLiquidity   = "liquidity"
	CategoryFinancing   = "financing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
