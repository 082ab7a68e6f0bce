package factoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/types"
)

// ListInvoiceInput describes a listing. The seller is the caller.
type ListInvoiceInput struct {
	TokenID     id.InvoiceID `json:"invoice_token_id"`
	Price       uint64       `json:"price"`
	ExpiryClock uint64       `json:"expiry_clock"`
	MinPurchase uint64       `json:"min_purchase"`
	MaxPurchase uint64       `json:"max_purchase"`
	Terms       string       `json:"terms,omitempty"`
}

// PurchaseInput describes a purchase agreement. The buyer is the caller.
type PurchaseInput struct {
	ListingID       id.ListingID `json:"listing_id"`
	PurchaseAmount  uint64       `json:"purchase_amount"`
	SettlementClock uint64       `json:"settlement_clock"`
	Terms           string       `json:"terms,omitempty"`
}

// SweepResult reports what a sweep changed.
type SweepResult struct {
	Defaulted []*agreement.Agreement `json:"defaulted"`
	Expired   []*listing.Listing     `json:"expired"`
}

// ──────────────────────────────────────────────────
// Listings
// ──────────────────────────────────────────────────

// ListInvoice offers an invoice token for sale. The caller must own the token
// and the token may have at most one active listing.
func (e *Engine) ListInvoice(ctx context.Context, in ListInvoiceInput) (*listing.Listing, error) {
	seller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case in.Price == 0:
		return nil, invalid("price", "must be positive")
	case in.MinPurchase > in.MaxPurchase:
		return nil, invalid("min_purchase", "must not exceed max_purchase")
	}
	if e.ownership == nil {
		return nil, fmt.Errorf("%w: ownership", ErrNotConfigured)
	}

	var l *listing.Listing
	err = e.mutate(ctx, "ListInvoice", func(ctx context.Context, now uint64) error {
		if in.ExpiryClock <= now {
			return ErrExpired
		}
		owner, err := e.ownership.OwnerOf(ctx, in.TokenID)
		if err != nil {
			return fmt.Errorf("factoring: token owner: %w", err)
		}
		if owner != seller {
			return ErrUnauthorized
		}

		l = &listing.Listing{
			Entity:      types.NewEntity(),
			ID:          id.NewListingID(),
			TokenID:     in.TokenID,
			Seller:      seller,
			Price:       in.Price,
			ExpiryClock: in.ExpiryClock,
			MinPurchase: in.MinPurchase,
			MaxPurchase: in.MaxPurchase,
			Terms:       in.Terms,
			Status:      listing.StatusActive,
			ListedAt:    now,
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.GetInvoice(ctx, in.TokenID); err != nil {
				return err
			}
			if err := tx.IndexToken(ctx, in.TokenID, l.ID); err != nil {
				return err
			}
			if err := tx.CreateListing(ctx, l); err != nil {
				return err
			}
			_, err := tx.IncrementCounter(ctx, settings.CounterListings)
			return err
		})
	}, attribute.String("invoice.id", in.TokenID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice listed",
		"listing_id", l.ID.String(),
		"invoice_id", l.TokenID.String(),
		"seller", l.Seller,
		"price", l.Price,
	)
	e.plugins.EmitListingCreated(ctx, l)
	return l, nil
}

// CancelListing withdraws an active listing. Only the seller may cancel.
func (e *Engine) CancelListing(ctx context.Context, listingID id.ListingID) (*listing.Listing, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var l *listing.Listing
	err = e.mutate(ctx, "CancelListing", func(ctx context.Context, _ uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if l, err = tx.GetListing(ctx, listingID); err != nil {
				return err
			}
			if l.Seller != caller {
				return ErrUnauthorized
			}
			if l.Status != listing.StatusActive {
				return ErrListingNotActive
			}
			return closeListing(ctx, tx, l, listing.StatusCancelled)
		})
	}, attribute.String("listing.id", listingID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("listing cancelled", "listing_id", l.ID.String())
	e.plugins.EmitListingCancelled(ctx, l)
	return l, nil
}

// closeListing moves an active listing to a terminal status and frees its
// token for relisting.
func closeListing(ctx context.Context, tx store.Tx, l *listing.Listing, status listing.Status) error {
	l.Status = status
	l.Touch()
	if err := tx.UpdateListing(ctx, l); err != nil {
		return err
	}
	return tx.UnindexToken(ctx, l.TokenID)
}

// ──────────────────────────────────────────────────
// Purchase Agreements
// ──────────────────────────────────────────────────

// CreatePurchaseAgreement commits the caller to buy from an active listing at
// its current price. An expired listing is rejected with ErrExpired whatever
// its stored status.
func (e *Engine) CreatePurchaseAgreement(ctx context.Context, in PurchaseInput) (*agreement.Agreement, error) {
	buyer, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var a *agreement.Agreement
	err = e.mutate(ctx, "CreatePurchaseAgreement", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			l, err := tx.GetListing(ctx, in.ListingID)
			if err != nil {
				return err
			}
			switch {
			case l.Expired(now):
				return ErrExpired
			case l.Status != listing.StatusActive:
				return ErrListingNotActive
			case buyer == l.Seller:
				return invalid("buyer", "seller cannot buy its own listing")
			case in.PurchaseAmount < l.MinPurchase || in.PurchaseAmount > l.MaxPurchase:
				return invalid("purchase_amount", "outside the listing's purchase range")
			case in.SettlementClock <= now:
				return invalid("settlement_clock", "must be in the future")
			}

			a = &agreement.Agreement{
				Entity:          types.NewEntity(),
				ID:              id.NewAgreementID(),
				ListingID:       l.ID,
				TokenID:         l.TokenID,
				Buyer:           buyer,
				Seller:          l.Seller,
				PurchaseAmount:  in.PurchaseAmount,
				AgreedPrice:     l.Price,
				AgreementClock:  now,
				SettlementClock: in.SettlementClock,
				Status:          agreement.StatusPending,
				Terms:           in.Terms,
			}
			if err := tx.CreateAgreement(ctx, a); err != nil {
				return err
			}
			_, err = tx.IncrementCounter(ctx, settings.CounterAgreements)
			return err
		})
	}, attribute.String("listing.id", in.ListingID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("purchase agreement created",
		"agreement_id", a.ID.String(),
		"listing_id", a.ListingID.String(),
		"buyer", a.Buyer,
		"agreed_price", a.AgreedPrice,
	)
	e.plugins.EmitAgreementCreated(ctx, a)
	return a, nil
}

// ExecutePurchase settles a pending agreement: the buyer pays the seller and
// the platform fee, and the token moves from seller to buyer. Either every
// step takes effect and the agreement completes, or the completed steps are
// undone and the call fails with a *SettlementError.
func (e *Engine) ExecutePurchase(ctx context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	buyer, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if e.ownership == nil || e.payments == nil {
		return nil, fmt.Errorf("%w: ownership and payments", ErrNotConfigured)
	}

	var a *agreement.Agreement
	var settleErr *SettlementError
	err = e.mutate(ctx, "ExecutePurchase", func(ctx context.Context, now uint64) error {
		var l *listing.Listing
		var s *settings.Settings
		err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if a, err = tx.GetAgreement(ctx, agreementID); err != nil {
				return err
			}
			if l, err = tx.GetListing(ctx, a.ListingID); err != nil {
				return err
			}
			s, err = e.loadSettings(ctx, tx)
			return err
		})
		if err != nil {
			return err
		}

		switch {
		case a.Buyer != buyer:
			return ErrUnauthorized
		case a.Status != agreement.StatusPending:
			return ErrAgreementNotPending
		case a.Overdue(now):
			return ErrExpired
		case l.Status != listing.StatusActive:
			return ErrListingNotActive
		}
		owner, err := e.ownership.OwnerOf(ctx, a.TokenID)
		if err != nil {
			return fmt.Errorf("factoring: token owner: %w", err)
		}
		if owner != a.Seller {
			return ErrUnauthorized
		}

		fee, err := types.ApplyBps(a.AgreedPrice, s.MarketplaceFeeBps)
		if err != nil {
			return err
		}
		sellerAmount := a.AgreedPrice - fee

		if reporter, ok := e.payments.(capability.BalanceReporter); ok {
			balance, err := reporter.BalanceOf(ctx, buyer)
			if err != nil {
				return fmt.Errorf("factoring: buyer balance: %w", err)
			}
			if balance < a.AgreedPrice {
				return ErrInsufficientFunds
			}
		}

		plan := e.purchasePlan(a, s.PlatformAddress, sellerAmount, fee)
		if settleErr = plan.execute(ctx); settleErr != nil {
			return settleErr
		}

		completed := *a
		completed.PlatformFee = fee
		completed.Status = agreement.StatusCompleted
		completed.CompletedAt = now
		completed.Touch()
		err = e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			current, err := tx.GetAgreement(ctx, a.ID)
			if err != nil {
				return err
			}
			if current.Status != agreement.StatusPending {
				return ErrAgreementNotPending
			}
			if err := tx.UpdateAgreement(ctx, &completed); err != nil {
				return err
			}
			return closeListing(ctx, tx, l, listing.StatusSold)
		})
		if err != nil {
			settleErr = plan.abort(ctx, StepCommit, err)
			return settleErr
		}
		a = &completed
		return nil
	}, attribute.String("agreement.id", agreementID.String()))

	if settleErr != nil {
		e.logger.Error("settlement failed",
			"agreement_id", agreementID.String(),
			"step", settleErr.Step,
			"error", settleErr.Err,
			"compensation_errors", len(settleErr.Compensation.Errors),
		)
		e.plugins.EmitSettlementFailed(ctx, a, settleErr)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("settlement completed",
		"agreement_id", a.ID.String(),
		"buyer", a.Buyer,
		"seller", a.Seller,
		"price", a.AgreedPrice,
		"platform_fee", a.PlatformFee,
	)
	e.plugins.EmitSettlementCompleted(ctx, a)
	return a, nil
}

// purchasePlan builds the ordered external steps of a settlement.
func (e *Engine) purchasePlan(a *agreement.Agreement, platform string, sellerAmount, fee uint64) *settlementPlan {
	plan := &settlementPlan{}
	if sellerAmount > 0 {
		plan.add(StepPaySeller,
			func(ctx context.Context) error { return e.payments.Transfer(ctx, sellerAmount, a.Buyer, a.Seller) },
			func(ctx context.Context) error { return e.payments.Transfer(ctx, sellerAmount, a.Seller, a.Buyer) },
		)
	}
	if fee > 0 {
		plan.add(StepPayPlatform,
			func(ctx context.Context) error { return e.payments.Transfer(ctx, fee, a.Buyer, platform) },
			func(ctx context.Context) error { return e.payments.Transfer(ctx, fee, platform, a.Buyer) },
		)
	}
	plan.add(StepDeliverToken,
		func(ctx context.Context) error { return e.ownership.Transfer(ctx, a.TokenID, a.Seller, a.Buyer) },
		func(ctx context.Context) error { return e.ownership.Transfer(ctx, a.TokenID, a.Buyer, a.Seller) },
	)
	return plan
}

// DefaultAgreement marks a pending agreement defaulted once its settlement
// deadline has passed. Anyone may call it.
func (e *Engine) DefaultAgreement(ctx context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	var a *agreement.Agreement
	err := e.mutate(ctx, "DefaultAgreement", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if a, err = tx.GetAgreement(ctx, agreementID); err != nil {
				return err
			}
			if a.Status != agreement.StatusPending {
				return ErrAgreementNotPending
			}
			if !a.Overdue(now) {
				return ErrNotOverdue
			}
			a.Status = agreement.StatusDefaulted
			a.Touch()
			return tx.UpdateAgreement(ctx, a)
		})
	}, attribute.String("agreement.id", agreementID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("agreement defaulted", "agreement_id", a.ID.String(), "buyer", a.Buyer)
	e.plugins.EmitAgreementDefaulted(ctx, a)
	return a, nil
}

// SweepDefaults defaults every overdue pending agreement and expires every
// active listing past its expiry, in one transaction.
func (e *Engine) SweepDefaults(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{}
	err := e.mutate(ctx, "SweepDefaults", func(ctx context.Context, now uint64) error {
		result = &SweepResult{}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			pending, err := tx.ListAgreements(ctx, agreement.ListOpts{
				Status:        agreement.StatusPending,
				SettlesBefore: now,
			})
			if err != nil {
				return err
			}
			for _, a := range pending {
				if !a.Overdue(now) {
					continue
				}
				a.Status = agreement.StatusDefaulted
				a.Touch()
				if err := tx.UpdateAgreement(ctx, a); err != nil {
					return err
				}
				result.Defaulted = append(result.Defaulted, a)
			}

			active, err := tx.ListListings(ctx, listing.ListOpts{
				Status:    listing.StatusActive,
				ExpiredBy: now,
			})
			if err != nil {
				return err
			}
			for _, l := range active {
				if !l.Expired(now) {
					continue
				}
				if err := closeListing(ctx, tx, l, listing.StatusExpired); err != nil {
					return err
				}
				result.Expired = append(result.Expired, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, a := range result.Defaulted {
		e.plugins.EmitAgreementDefaulted(ctx, a)
	}
	for _, l := range result.Expired {
		e.plugins.EmitListingExpired(ctx, l)
	}
	elapsed := time.Since(start)
	e.plugins.EmitSweepCompleted(ctx, len(result.Defaulted), len(result.Expired), elapsed)

	if len(result.Defaulted) > 0 || len(result.Expired) > 0 {
		e.logger.Info("sweep completed",
			"defaulted", len(result.Defaulted),
			"expired", len(result.Expired),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Marketplace Reads
// ──────────────────────────────────────────────────

// GetListing retrieves a listing by ID.
func (e *Engine) GetListing(ctx context.Context, listingID id.ListingID) (*listing.Listing, error) {
	var l *listing.Listing
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		l, err = tx.GetListing(ctx, listingID)
		return err
	})
	return l, err
}

// ListingForToken returns the active listing of an invoice token.
func (e *Engine) ListingForToken(ctx context.Context, tokenID id.InvoiceID) (*listing.Listing, error) {
	var l *listing.Listing
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		listingID, err := tx.ListingForToken(ctx, tokenID)
		if err != nil {
			return err
		}
		l, err = tx.GetListing(ctx, listingID)
		return err
	})
	return l, err
}

// ListListings lists listings matching opts.
func (e *Engine) ListListings(ctx context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	var result []*listing.Listing
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListListings(ctx, opts)
		return err
	})
	return result, err
}

// GetAgreement retrieves a purchase agreement by ID.
func (e *Engine) GetAgreement(ctx context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	var a *agreement.Agreement
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		a, err = tx.GetAgreement(ctx, agreementID)
		return err
	})
	return a, err
}

// ListAgreements lists purchase agreements matching opts.
func (e *Engine) ListAgreements(ctx context.Context, opts agreement.ListOpts) ([]*agreement.Agreement, error) {
	var result []*agreement.Agreement
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListAgreements(ctx, opts)
		return err
	})
	return result, err
}
