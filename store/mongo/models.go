package mongo

import (
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

// ──────────────────────────────────────────────────
// Invoice models
// ──────────────────────────────────────────────────

type invoiceModel struct {
	ID            string    `bson:"_id"`
	Number        string    `bson:"invoice_number"`
	Issuer        string    `bson:"issuer"`
	Payer         string    `bson:"payer"`
	Amount        uint64    `bson:"amount"`
	DueDate       uint64    `bson:"due_date"`
	DocumentHash  string    `bson:"document_hash"`
	FractionCount uint64    `bson:"fraction_count"`
	TotalSupply   uint64    `bson:"total_supply"`
	Verified      bool      `bson:"verified"`
	VerifiedAt    uint64    `bson:"verified_at"`
	Paid          bool      `bson:"paid"`
	PaidAt        uint64    `bson:"paid_at"`
	IssuedAt      uint64    `bson:"issued_at"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:            inv.ID.String(),
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

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            invID,
		Number:        m.Number,
		Issuer:        m.Issuer,
		Payer:         m.Payer,
		Amount:        m.Amount,
		DueDate:       m.DueDate,
		DocumentHash:  m.DocumentHash,
		FractionCount: m.FractionCount,
		TotalSupply:   m.TotalSupply,
		Verified:      m.Verified,
		VerifiedAt:    m.VerifiedAt,
		Paid:          m.Paid,
		PaidAt:        m.PaidAt,
		IssuedAt:      m.IssuedAt,
	}, nil
}

type holdingModel struct {
	InvoiceID string `bson:"invoice_id"`
	Holder    string `bson:"holder"`
	Shares    uint64 `bson:"shares"`
}

// ──────────────────────────────────────────────────
// Listing models
// ──────────────────────────────────────────────────

type listingModel struct {
	ID          string    `bson:"_id"`
	TokenID     string    `bson:"token_id"`
	Seller      string    `bson:"seller"`
	Price       uint64    `bson:"price"`
	ExpiryClock uint64    `bson:"expiry_clock"`
	MinPurchase uint64    `bson:"min_purchase"`
	MaxPurchase uint64    `bson:"max_purchase"`
	Terms       string    `bson:"terms"`
	Status      string    `bson:"status"`
	ListedAt    uint64    `bson:"listed_at"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toListingModel(l *listing.Listing) *listingModel {
	return &listingModel{
		ID:          l.ID.String(),
		TokenID:     l.TokenID.String(),
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

func fromListingModel(m *listingModel) (*listing.Listing, error) {
	listingID, err := id.ParseListingID(m.ID)
	if err != nil {
		return nil, err
	}
	tokenID, err := id.ParseInvoiceID(m.TokenID)
	if err != nil {
		return nil, err
	}
	return &listing.Listing{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          listingID,
		TokenID:     tokenID,
		Seller:      m.Seller,
		Price:       m.Price,
		ExpiryClock: m.ExpiryClock,
		MinPurchase: m.MinPurchase,
		MaxPurchase: m.MaxPurchase,
		Terms:       m.Terms,
		Status:      listing.Status(m.Status),
		ListedAt:    m.ListedAt,
	}, nil
}

// tokenIndexModel is keyed by token so the _id index enforces one active
// listing per token.
type tokenIndexModel struct {
	TokenID   string `bson:"_id"`
	ListingID string `bson:"listing_id"`
}

// ──────────────────────────────────────────────────
// Agreement models
// ──────────────────────────────────────────────────

type agreementModel struct {
	ID              string    `bson:"_id"`
	ListingID       string    `bson:"listing_id"`
	TokenID         string    `bson:"token_id"`
	Buyer           string    `bson:"buyer"`
	Seller          string    `bson:"seller"`
	PurchaseAmount  uint64    `bson:"purchase_amount"`
	AgreedPrice     uint64    `bson:"agreed_price"`
	PlatformFee     uint64    `bson:"platform_fee"`
	AgreementClock  uint64    `bson:"agreement_clock"`
	SettlementClock uint64    `bson:"settlement_clock"`
	Status          string    `bson:"status"`
	Terms           string    `bson:"terms"`
	CompletedAt     uint64    `bson:"completed_at"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toAgreementModel(a *agreement.Agreement) *agreementModel {
	return &agreementModel{
		ID:              a.ID.String(),
		ListingID:       a.ListingID.String(),
		TokenID:         a.TokenID.String(),
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

func fromAgreementModel(m *agreementModel) (*agreement.Agreement, error) {
	agreementID, err := id.ParseAgreementID(m.ID)
	if err != nil {
		return nil, err
	}
	listingID, err := id.ParseListingID(m.ListingID)
	if err != nil {
		return nil, err
	}
	tokenID, err := id.ParseInvoiceID(m.TokenID)
	if err != nil {
		return nil, err
	}
	return &agreement.Agreement{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              agreementID,
		ListingID:       listingID,
		TokenID:         tokenID,
		Buyer:           m.Buyer,
		Seller:          m.Seller,
		PurchaseAmount:  m.PurchaseAmount,
		AgreedPrice:     m.AgreedPrice,
		PlatformFee:     m.PlatformFee,
		AgreementClock:  m.AgreementClock,
		SettlementClock: m.SettlementClock,
		Status:          agreement.Status(m.Status),
		Terms:           m.Terms,
		CompletedAt:     m.CompletedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Pool models
// ──────────────────────────────────────────────────

type poolModel struct {
	ID         string    `bson:"_id"`
	TokenA     string    `bson:"token_a"`
	TokenB     string    `bson:"token_b"`
	ReserveA   uint64    `bson:"reserve_a"`
	ReserveB   uint64    `bson:"reserve_b"`
	FeeRateBps uint64    `bson:"fee_rate_bps"`
	ChainID    uint64    `bson:"chain_id"`
	Enabled    bool      `bson:"enabled"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toPoolModel(p *pool.Pool) *poolModel {
	return &poolModel{
		ID:         p.ID.String(),
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

func fromPoolModel(m *poolModel) (*pool.Pool, error) {
	poolID, err := id.ParsePoolID(m.ID)
	if err != nil {
		return nil, err
	}
	return &pool.Pool{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         poolID,
		TokenA:     m.TokenA,
		TokenB:     m.TokenB,
		ReserveA:   m.ReserveA,
		ReserveB:   m.ReserveB,
		FeeRateBps: m.FeeRateBps,
		ChainID:    m.ChainID,
		Enabled:    m.Enabled,
	}, nil
}

// ──────────────────────────────────────────────────
// Route and swap models
// ──────────────────────────────────────────────────

type routeModel struct {
	ID              string    `bson:"_id"`
	InputToken      string    `bson:"input_token"`
	OutputToken     string    `bson:"output_token"`
	InputAmount     uint64    `bson:"input_amount"`
	PoolPath        []string  `bson:"pool_path"`
	EstimatedOutput uint64    `bson:"estimated_output"`
	TotalFees       uint64    `bson:"total_fees"`
	GasCost         uint64    `bson:"gas_cost"`
	SlippageBps     uint64    `bson:"slippage_bps"`
	ChainID         uint64    `bson:"chain_id"`
	QuotedAt        uint64    `bson:"quoted_at"`
	Consumed        bool      `bson:"consumed"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toRouteModel(r *swap.Route) *routeModel {
	path := make([]string, len(r.PoolPath))
	for i, p := range r.PoolPath {
		path[i] = p.String()
	}
	return &routeModel{
		ID:              r.ID.String(),
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
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromRouteModel(m *routeModel) (*swap.Route, error) {
	routeID, err := id.ParseRouteID(m.ID)
	if err != nil {
		return nil, err
	}
	path := make([]id.PoolID, len(m.PoolPath))
	for i, s := range m.PoolPath {
		if path[i], err = id.ParsePoolID(s); err != nil {
			return nil, err
		}
	}
	return &swap.Route{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              routeID,
		InputToken:      m.InputToken,
		OutputToken:     m.OutputToken,
		InputAmount:     m.InputAmount,
		PoolPath:        path,
		EstimatedOutput: m.EstimatedOutput,
		TotalFees:       m.TotalFees,
		GasCost:         m.GasCost,
		SlippageBps:     m.SlippageBps,
		ChainID:         m.ChainID,
		QuotedAt:        m.QuotedAt,
		Consumed:        m.Consumed,
	}, nil
}

type swapModel struct {
	ID           string    `bson:"_id"`
	RouteID      string    `bson:"route_id"`
	Trader       string    `bson:"trader"`
	InputToken   string    `bson:"input_token"`
	OutputToken  string    `bson:"output_token"`
	InputAmount  uint64    `bson:"input_amount"`
	OutputAmount uint64    `bson:"output_amount"`
	FeeAmount    uint64    `bson:"fee_amount"`
	SlippageBps  uint64    `bson:"slippage_bps"`
	ExecutedAt   uint64    `bson:"executed_at"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toSwapModel(s *swap.Swap) *swapModel {
	return &swapModel{
		ID:           s.ID.String(),
		RouteID:      s.RouteID.String(),
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

func fromSwapModel(m *swapModel) (*swap.Swap, error) {
	swapID, err := id.ParseSwapID(m.ID)
	if err != nil {
		return nil, err
	}
	routeID, err := id.ParseRouteID(m.RouteID)
	if err != nil {
		return nil, err
	}
	return &swap.Swap{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           swapID,
		RouteID:      routeID,
		Trader:       m.Trader,
		InputToken:   m.InputToken,
		OutputToken:  m.OutputToken,
		InputAmount:  m.InputAmount,
		OutputAmount: m.OutputAmount,
		FeeAmount:    m.FeeAmount,
		SlippageBps:  m.SlippageBps,
		ExecutedAt:   m.ExecutedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Discount models
// ──────────────────────────────────────────────────

type curveModel struct {
	Issuer      string    `bson:"_id"`
	BaseRateBps uint64    `bson:"base_rate_bps"`
	MaxRateBps  uint64    `bson:"max_rate_bps"`
	TimeFactor  uint64    `bson:"time_factor"`
	Active      bool      `bson:"active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toCurveModel(c *discount.Curve) *curveModel {
	return &curveModel{
		Issuer:      c.Issuer,
		BaseRateBps: c.BaseRateBps,
		MaxRateBps:  c.MaxRateBps,
		TimeFactor:  c.TimeFactor,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromCurveModel(m *curveModel) *discount.Curve {
	return &discount.Curve{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Issuer:      m.Issuer,
		BaseRateBps: m.BaseRateBps,
		MaxRateBps:  m.MaxRateBps,
		TimeFactor:  m.TimeFactor,
		Active:      m.Active,
	}
}

type proposalModel struct {
	ID              string    `bson:"_id"`
	InvoiceID       string    `bson:"invoice_id"`
	Proposer        string    `bson:"proposer"`
	Counterparty    string    `bson:"counterparty"`
	DiscountRateBps uint64    `bson:"discount_rate_bps"`
	ValidUntil      uint64    `bson:"valid_until"`
	Accepted        bool      `bson:"accepted"`
	AcceptedAt      uint64    `bson:"accepted_at"`
	ProposedAt      uint64    `bson:"proposed_at"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toProposalModel(p *discount.Proposal) *proposalModel {
	return &proposalModel{
		ID:              p.ID.String(),
		InvoiceID:       p.InvoiceID.String(),
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

func fromProposalModel(m *proposalModel) (*discount.Proposal, error) {
	proposalID, err := id.ParseProposalID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &discount.Proposal{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              proposalID,
		InvoiceID:       invID,
		Proposer:        m.Proposer,
		Counterparty:    m.Counterparty,
		DiscountRateBps: m.DiscountRateBps,
		ValidUntil:      m.ValidUntil,
		Accepted:        m.Accepted,
		AcceptedAt:      m.AcceptedAt,
		ProposedAt:      m.ProposedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Settings models
// ──────────────────────────────────────────────────

const settingsDocID = "settings"

type settingsModel struct {
	ID                string `bson:"_id"`
	MarketplaceFeeBps uint64 `bson:"marketplace_fee_bps"`
	PlatformAddress   string `bson:"platform_address"`
	AggregatorEnabled bool   `bson:"aggregator_enabled"`
	MaxSlippageBps    uint64 `bson:"max_slippage_bps"`
	LocalChainID      uint64 `bson:"local_chain_id"`
}

func toSettingsModel(s *settings.Settings) *settingsModel {
	return &settingsModel{
		ID:                settingsDocID,
		MarketplaceFeeBps: s.MarketplaceFeeBps,
		PlatformAddress:   s.PlatformAddress,
		AggregatorEnabled: s.AggregatorEnabled,
		MaxSlippageBps:    s.MaxSlippageBps,
		LocalChainID:      s.LocalChainID,
	}
}

func fromSettingsModel(m *settingsModel) *settings.Settings {
	return &settings.Settings{
		MarketplaceFeeBps: m.MarketplaceFeeBps,
		PlatformAddress:   m.PlatformAddress,
		AggregatorEnabled: m.AggregatorEnabled,
		MaxSlippageBps:    m.MaxSlippageBps,
		LocalChainID:      m.LocalChainID,
	}
}

type counterModel struct {
	Name  string `bson:"_id"`
	Value uint64 `bson:"value"`
}
