// Package factoring provides the transactional core of a supply-chain-finance
// ledger: an invoice token ledger, a marketplace that settles invoice tokens
// against payment, and a constant-product swap pricing and routing engine.
//
// Factoring is designed as a library, not a service. Import it into your Go
// application and inject the external collaborators it consumes: token
// ownership, value transfer, role management, the chain registry, signature
// validation and the logical clock. The cmd/factoringd daemon wires the
// engine behind an HTTP API for development use.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/factoring"
//	    "github.com/xraph/factoring/store/sqlite"
//	)
//
//	s, err := sqlite.Open("factoring.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := factoring.New(s,
//	    factoring.WithClock(chainClock),
//	    factoring.WithAccess(roles),
//	    factoring.WithSignatures(verifierKeys),
//	    factoring.WithOwnership(registry),
//	    factoring.WithPayments(payments),
//	)
//
//	// Migrate the store and start the default/expiry sweeper
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// Without WithAccess and WithSignatures every role check and every invoice
// verification fails.
//
// # Callers
//
// Every mutating call acts on behalf of the principal carried in its context:
//
//	ctx = factoring.WithCaller(ctx, "0xissuer")
//	inv, err := engine.CreateInvoice(ctx, factoring.CreateInvoiceInput{
//	    Number:  "INV-2024-001",
//	    Payer:   "0xbuyer",
//	    Amount:  1_000_000,
//	    DueDate: 5_000,
//	})
//
// # Invoice Tokens
//
// An invoice is issued, verified by a verifier, then tokenized once into a
// fixed number of shares credited to the issuer. The sum of all holdings
// always equals the invoice's total supply.
//
// # Marketplace
//
// The owner of an invoice token lists it, a buyer signs a purchase agreement
// and executes it before its settlement deadline. Settlement pays the seller,
// pays the platform fee and delivers the token; if any step fails the
// completed steps are undone and no state changes. Agreements that pass their
// deadline are defaulted by the sweeper or by anyone calling
// DefaultAgreement.
//
// # Swaps
//
// Pools price trades with the constant-product formula. GetBestRoute quotes
// every enabled pool for a pair and stores the best single-hop route.
// ExecuteSwap re-quotes that route against current reserves, applies the
// slippage guards and updates the pool in one transaction. Price impact is
// capped at MaxSlippageBps regardless of what the caller tolerates.
//
// # Amounts and Time
//
// All amounts are unsigned integers in the smallest unit and all rates are
// basis points; arithmetic floors and never uses floating point. Deadlines
// are logical clock heights, not wall-clock times.
//
// # TypeID
//
// All entities use prefix-qualified TypeIDs:
//
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
//	lst_01h455vb4pex5vsknk084sn02q   // Listing ID
//	agr_01h455vb4pex5vsknk084sn02q   // Purchase agreement ID
//	pool_01h455vb4pex5vsknk084sn02q  // Pool ID
package factoring
