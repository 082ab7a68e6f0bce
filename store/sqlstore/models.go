package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/swap"
	"github.com/xraph/factoring/types"
)

// ==================== Invoice models ====================

type invoiceRow struct {
	ID            id.ID     `db:"id"`
	Number        string    `db:"invoice_number"`
	Issuer        string    `db:"issuer"`
	Payer         string    `db:"payer"`
	Amount        uint64    `db:"amount"`
	DueDate       uint64    `db:"due_date"`
	DocumentHash  string    `db:"document_hash"`
	FractionCount uint64    `db:"fraction_count"`
	TotalSupply   uint64    `db:"total_supply"`
	Verified      bool      `db:"verified"`
	VerifiedAt    uint64    `db:"verified_at"`
	Paid          bool      `db:"paid"`
	PaidAt        uint64    `db:"paid_at"`
	IssuedAt      uint64    `db:"issued_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	return &invoiceRow{
		ID:            inv.ID,
		Number:        inv.Number,
		Issuer:        inv.Issuer,
		Payer:         inv.Payer,
		Amount:        inv.Amount,
		DueDate:       inv.DueDate,
		DocumentHash:  inv.DocumentHash,
		FractionCount: inv.FractionCount,
		TotalSupply:   inv.TotalSupply,
		Verified:      inv.Verified,
		VerifiedAt:    inv.VerifiedAt,
		Paid:          inv.Paid,
		PaidAt:        inv.PaidAt,
		IssuedAt:      inv.IssuedAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceRow(r *invoiceRow) *invoice.Invoice {
	return &invoice.Invoice{
		Entity:        types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:            r.ID,
		Number:        r.Number,
		Issuer:        r.Issuer,
		Payer:         r.Payer,
		Amount:        r.Amount,
		DueDate:       r.DueDate,
		DocumentHash:  r.DocumentHash,
		FractionCount: r.FractionCount,
		TotalSupply:   r.TotalSupply,
		Verified:      r.Verified,
		VerifiedAt:    r.VerifiedAt,
		Paid:          r.Paid,
		PaidAt:        r.PaidAt,
		IssuedAt:      r.IssuedAt,
	}
}

type holdingRow struct {
	InvoiceID id.ID  `db:"invoice_id"`
	Holder    string `db:"holder"`
	Shares    uint64 `db:"shares"`
}

// ==================== Listing models ====================

type listingRow struct {
	ID          id.ID     `db:"id"`
	TokenID     id.ID     `db:"token_id"`
	Seller      string    `db:"seller"`
	Price       uint64    `db:"price"`
	ExpiryClock uint64    `db:"expiry_clock"`
	MinPurchase uint64    `db:"min_purchase"`
	MaxPurchase uint64    `db:"max_purchase"`
	Terms       string    `db:"terms"`
	Status      string    `db:"status"`
	ListedAt    uint64    `db:"listed_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toListingRow(l *listing.Listing) *listingRow {
	return &listingRow{
		ID:          l.ID,
		TokenID:     l.TokenID,
		Seller:      l.Seller,
		Price:       l.Price,
		ExpiryClock: l.ExpiryClock,
		MinPurchase: l.MinPurchase,
		MaxPurchase: l.MaxPurchase,
		Terms:       l.Terms,
		Status:      string(l.Status),
		ListedAt:    l.ListedAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func fromListingRow(r *listingRow) *listing.Listing {
	return &listing.Listing{
		Entity:      types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:          r.ID,
		TokenID:     r.TokenID,
		Seller:      r.Seller,
		Price:       r.Price,
		ExpiryClock: r.ExpiryClock,
		MinPurchase: r.MinPurchase,
		MaxPurchase: r.MaxPurchase,
		Terms:       r.Terms,
		Status:      listing.Status(r.Status),
		ListedAt:    r.ListedAt,
	}
}

// ==================== Agreement models ====================

type agreementRow struct {
	ID              id.ID     `db:"id"`
	ListingID       id.ID     `db:"listing_id"`
	TokenID         id.ID     `db:"token_id"`
	Buyer           string    `db:"buyer"`
	Seller          string    `db:"seller"`
	PurchaseAmount  uint64    `db:"purchase_amount"`
	AgreedPrice     uint64    `db:"agreed_price"`
	PlatformFee     uint64    `db:"platform_fee"`
	AgreementClock  uint64    `db:"agreement_clock"`
	SettlementClock uint64    `db:"settlement_clock"`
	Status          string    `db:"status"`
	Terms           string    `db:"terms"`
	CompletedAt     uint64    `db:"completed_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func toAgreementRow(a *agreement.Agreement) *agreementRow {
	return &agreementRow{
		ID:              a.ID,
		ListingID:       a.ListingID,
		TokenID:         a.TokenID,
		Buyer:           a.Buyer,
		Seller:          a.Seller,
		PurchaseAmount:  a.PurchaseAmount,
		AgreedPrice:     a.AgreedPrice,
		PlatformFee:     a.PlatformFee,
		AgreementClock:  a.AgreementClock,
		SettlementClock: a.SettlementClock,
		Status:          string(a.Status),
		Terms:           a.Terms,
		CompletedAt:     a.CompletedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromAgreementRow(r *agreementRow) *agreement.Agreement {
	return &agreement.Agreement{
		Entity:          types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:              r.ID,
		ListingID:       r.ListingID,
		TokenID:         r.TokenID,
		Buyer:           r.Buyer,
		Seller:          r.Seller,
		PurchaseAmount:  r.PurchaseAmount,
		AgreedPrice:     r.AgreedPrice,
		PlatformFee:     r.PlatformFee,
		AgreementClock:  r.AgreementClock,
		SettlementClock: r.SettlementClock,
		Status:          agreement.Status(r.Status),
		Terms:           r.Terms,
		CompletedAt:     r.CompletedAt,
	}
}

// ==================== Pool models ====================

type poolRow struct {
	ID         id.ID     `db:"id"`
	TokenA     string    `db:"token_a"`
	TokenB     string    `db:"token_b"`
	ReserveA   uint64    `db:"reserve_a"`
	ReserveB   uint64    `db:"reserve_b"`
	FeeRateBps uint64    `db:"fee_rate_bps"`
	ChainID    uint64    `db:"chain_id"`
	Enabled    bool      `db:"enabled"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func toPoolRow(p *pool.Pool) *poolRow {
	return &poolRow{
		ID:         p.ID,
		TokenA:     p.TokenA,
		TokenB:     p.TokenB,
		ReserveA:   p.ReserveA,
		ReserveB:   p.ReserveB,
		FeeRateBps: p.FeeRateBps,
		ChainID:    p.ChainID,
		Enabled:    p.Enabled,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPoolRow(r *poolRow) *pool.Pool {
	return &pool.Pool{
		Entity:     types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:         r.ID,
		TokenA:     r.TokenA,
		TokenB:     r.TokenB,
		ReserveA:   r.ReserveA,
		ReserveB:   r.ReserveB,
		FeeRateBps: r.FeeRateBps,
		ChainID:    r.ChainID,
		Enabled:    r.Enabled,
	}
}

// ==================== Route and swap models ====================

type routeRow struct {
	ID              id.ID     `db:"id"`
	InputToken      string    `db:"input_token"`
	OutputToken     string    `db:"output_token"`
	InputAmount     uint64    `db:"input_amount"`
	PoolPath        string    `db:"pool_path"`
	EstimatedOutput uint64    `db:"estimated_output"`
	TotalFees       uint64    `db:"total_fees"`
	GasCost         uint64    `db:"gas_cost"`
	SlippageBps     uint64    `db:"slippage_bps"`
	ChainID         uint64    `db:"chain_id"`
	QuotedAt        uint64    `db:"quoted_at"`
	Consumed        bool      `db:"consumed"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func toRouteRow(r *swap.Route) (*routeRow, error) {
	path := r.PoolPath
	if path == nil {
		path = []id.PoolID{}
	}
	encoded, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("factoring/sql: marshal pool path: %w", err)
	}
	return &routeRow{
		ID:              r.ID,
		InputToken:      r.InputToken,
		OutputToken:     r.OutputToken,
		InputAmount:     r.InputAmount,
		PoolPath:        string(encoded),
		EstimatedOutput: r.EstimatedOutput,
		TotalFees:       r.TotalFees,
		GasCost:         r.GasCost,
		SlippageBps:     r.SlippageBps,
		ChainID:         r.ChainID,
		QuotedAt:        r.QuotedAt,
		Consumed:        r.Consumed,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func fromRouteRow(r *routeRow) (*swap.Route, error) {
	var path []id.PoolID
	if err := json.Unmarshal([]byte(r.PoolPath), &path); err != nil {
		return nil, fmt.Errorf("factoring/sql: unmarshal pool path: %w", err)
	}
	return &swap.Route{
		Entity:          types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:              r.ID,
		InputToken:      r.InputToken,
		OutputToken:     r.OutputToken,
		InputAmount:     r.InputAmount,
		PoolPath:        path,
		EstimatedOutput: r.EstimatedOutput,
		TotalFees:       r.TotalFees,
		GasCost:         r.GasCost,
		SlippageBps:     r.SlippageBps,
		ChainID:         r.ChainID,
		QuotedAt:        r.QuotedAt,
		Consumed:        r.Consumed,
	}, nil
}

type swapRow struct {
	ID           id.ID     `db:"id"`
	RouteID      id.ID     `db:"route_id"`
	Trader       string    `db:"trader"`
	InputToken   string    `db:"input_token"`
	OutputToken  string    `db:"output_token"`
	InputAmount  uint64    `db:"input_amount"`
	OutputAmount uint64    `db:"output_amount"`
	FeeAmount    uint64    `db:"fee_amount"`
	SlippageBps  uint64    `db:"slippage_bps"`
	ExecutedAt   uint64    `db:"executed_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func toSwapRow(s *swap.Swap) *swapRow {
	return &swapRow{
		ID:           s.ID,
		RouteID:      s.RouteID,
		Trader:       s.Trader,
		InputToken:   s.InputToken,
		OutputToken:  s.OutputToken,
		InputAmount:  s.InputAmount,
		OutputAmount: s.OutputAmount,
		FeeAmount:    s.FeeAmount,
		SlippageBps:  s.SlippageBps,
		ExecutedAt:   s.ExecutedAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func fromSwapRow(r *swapRow) *swap.Swap {
	return &swap.Swap{
		Entity:       types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:           r.ID,
		RouteID:      r.RouteID,
		Trader:       r.Trader,
		InputToken:   r.InputToken,
		OutputToken:  r.OutputToken,
		InputAmount:  r.InputAmount,
		OutputAmount: r.OutputAmount,
		FeeAmount:    r.FeeAmount,
		SlippageBps:  r.SlippageBps,
		ExecutedAt:   r.ExecutedAt,
	}
}

// ==================== Discount models ====================

type curveRow struct {
	Issuer      string    `db:"issuer"`
	BaseRateBps uint64    `db:"base_rate_bps"`
	MaxRateBps  uint64    `db:"max_rate_bps"`
	TimeFactor  uint64    `db:"time_factor"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toCurveRow(c *discount.Curve) *curveRow {
	return &curveRow{
		Issuer:      c.Issuer,
		BaseRateBps: c.BaseRateBps,
		MaxRateBps:  c.MaxRateBps,
		TimeFactor:  c.TimeFactor,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromCurveRow(r *curveRow) *discount.Curve {
	return &discount.Curve{
		Entity:      types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Issuer:      r.Issuer,
		BaseRateBps: r.BaseRateBps,
		MaxRateBps:  r.MaxRateBps,
		TimeFactor:  r.TimeFactor,
		Active:      r.Active,
	}
}

type proposalRow struct {
	ID              id.ID     `db:"id"`
	InvoiceID       id.ID     `db:"invoice_id"`
	Proposer        string    `db:"proposer"`
	Counterparty    string    `db:"counterparty"`
	DiscountRateBps uint64    `db:"discount_rate_bps"`
	ValidUntil      uint64    `db:"valid_until"`
	Accepted        bool      `db:"accepted"`
	AcceptedAt      uint64    `db:"accepted_at"`
	ProposedAt      uint64    `db:"proposed_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func toProposalRow(p *discount.Proposal) *proposalRow {
	return &proposalRow{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		Proposer:        p.Proposer,
		Counterparty:    p.Counterparty,
		DiscountRateBps: p.DiscountRateBps,
		ValidUntil:      p.ValidUntil,
		Accepted:        p.Accepted,
		AcceptedAt:      p.AcceptedAt,
		ProposedAt:      p.ProposedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromProposalRow(r *proposalRow) *discount.Proposal {
	return &discount.Proposal{
		Entity:          types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:              r.ID,
		InvoiceID:       r.InvoiceID,
		Proposer:        r.Proposer,
		Counterparty:    r.Counterparty,
		DiscountRateBps: r.DiscountRateBps,
		ValidUntil:      r.ValidUntil,
		Accepted:        r.Accepted,
		AcceptedAt:      r.AcceptedAt,
		ProposedAt:      r.ProposedAt,
	}
}

// ==================== Settings models ====================

type settingsRow struct {
	MarketplaceFeeBps uint64 `db:"marketplace_fee_bps"`
	PlatformAddress   string `db:"platform_address"`
	AggregatorEnabled bool   `db:"aggregator_enabled"`
	MaxSlippageBps    uint64 `db:"max_slippage_bps"`
	LocalChainID      uint64 `db:"local_chain_id"`
}

func fromSettingsRow(r *settingsRow) *settings.Settings {
	return &settings.Settings{
		MarketplaceFeeBps: r.MarketplaceFeeBps,
		PlatformAddress:   r.PlatformAddress,
		AggregatorEnabled: r.AggregatorEnabled,
		MaxSlippageBps:    r.MaxSlippageBps,
		LocalChainID:      r.LocalChainID,
	}
}
