package factoring

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/types"
)

// DiscountCurveInput sets the caller's discount curve.
type DiscountCurveInput struct {
	BaseRateBps uint64 `json:"base_rate_bps"`
	MaxRateBps  uint64 `json:"max_rate_bps"`
	TimeFactor  uint64 `json:"time_factor"`
	Active      bool   `json:"active"`
}

// ProposeDiscountInput offers early payment of an invoice at a discount.
type ProposeDiscountInput struct {
	InvoiceID       id.InvoiceID `json:"invoice_id"`
	DiscountRateBps uint64       `json:"discount_rate_bps"`
	ValidUntil      uint64       `json:"valid_until"`
}

// SetDiscountCurve replaces the caller's discount curve. The caller must
// hold the issuer role.
func (e *Engine) SetDiscountCurve(ctx context.Context, in DiscountCurveInput) (*discount.Curve, error) {
	issuer, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case in.MaxRateBps > types.BpsDenominator:
		return nil, invalid("max_rate_bps", "must not exceed 10000")
	case in.BaseRateBps > in.MaxRateBps:
		return nil, invalid("base_rate_bps", "must not exceed max_rate_bps")
	}

	var c *discount.Curve
	err = e.mutate(ctx, "SetDiscountCurve", func(ctx context.Context, _ uint64) error {
		if err := e.requireRole(ctx, issuer, capability.RoleIssuer); err != nil {
			return err
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			c = &discount.Curve{
				Entity:      types.NewEntity(),
				Issuer:      issuer,
				BaseRateBps: in.BaseRateBps,
				MaxRateBps:  in.MaxRateBps,
				TimeFactor:  in.TimeFactor,
				Active:      in.Active,
			}
			if prev, err := tx.GetCurve(ctx, issuer); err == nil {
				c.CreatedAt = prev.CreatedAt
			}
			return tx.PutCurve(ctx, c)
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("discount curve set",
		"issuer", c.Issuer,
		"base_rate_bps", c.BaseRateBps,
		"max_rate_bps", c.MaxRateBps,
		"active", c.Active,
	)
	return c, nil
}

// SuggestedDiscountRate returns the issuer curve's rate for an invoice: the
// base rate plus the time factor applied to the clock ticks left until the
// due date, capped at the maximum rate.
func (e *Engine) SuggestedDiscountRate(ctx context.Context, invID id.InvoiceID) (uint64, error) {
	now, err := e.now(ctx)
	if err != nil {
		return 0, err
	}

	var rate uint64
	err = e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		inv, err := tx.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		c, err := tx.GetCurve(ctx, inv.Issuer)
		if err != nil {
			return err
		}
		if !c.Active {
			return ErrCurveNotFound
		}
		rate = suggestedRate(c, inv.DueDate, now)
		return nil
	})
	return rate, err
}

// suggestedRate evaluates a curve. Overflow saturates at the maximum rate.
func suggestedRate(c *discount.Curve, dueDate, now uint64) uint64 {
	if now >= dueDate {
		return c.BaseRateBps
	}
	bonus, err := types.MulDiv(dueDate-now, c.TimeFactor, types.BpsDenominator)
	if err != nil {
		return c.MaxRateBps
	}
	rate, err := types.Add(c.BaseRateBps, bonus)
	if err != nil {
		return c.MaxRateBps
	}
	return min(rate, c.MaxRateBps)
}

// ProposeDiscount offers early payment of an unpaid invoice. The proposer
// must be the invoice's issuer or payer and the other party becomes the
// counterparty. When the issuer has an active curve the rate must fall
// within it.
func (e *Engine) ProposeDiscount(ctx context.Context, in ProposeDiscountInput) (*discount.Proposal, error) {
	proposer, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if in.DiscountRateBps > types.BpsDenominator {
		return nil, invalid("discount_rate_bps", "must not exceed 10000")
	}

	var prop *discount.Proposal
	err = e.mutate(ctx, "ProposeDiscount", func(ctx context.Context, now uint64) error {
		if in.ValidUntil <= now {
			return invalid("valid_until", "must be in the future")
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			inv, err := tx.GetInvoice(ctx, in.InvoiceID)
			if err != nil {
				return err
			}
			counterparty, err := counterpartyOf(inv, proposer)
			if err != nil {
				return err
			}
			if inv.Paid {
				return ErrInvoicePaid
			}
			if c, err := tx.GetCurve(ctx, inv.Issuer); err == nil && c.Active {
				if in.DiscountRateBps < c.BaseRateBps || in.DiscountRateBps > c.MaxRateBps {
					return invalid("discount_rate_bps", "outside the issuer's discount curve")
				}
			} else if err != nil && !IsNotFound(err) {
				return err
			}

			prop = &discount.Proposal{
				Entity:          types.NewEntity(),
				ID:              id.NewProposalID(),
				InvoiceID:       inv.ID,
				Proposer:        proposer,
				Counterparty:    counterparty,
				DiscountRateBps: in.DiscountRateBps,
				ValidUntil:      in.ValidUntil,
				ProposedAt:      now,
			}
			if err := tx.CreateProposal(ctx, prop); err != nil {
				return err
			}
			_, err = tx.IncrementCounter(ctx, settings.CounterProposals)
			return err
		})
	}, attribute.String("invoice.id", in.InvoiceID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("discount proposed",
		"proposal_id", prop.ID.String(),
		"invoice_id", prop.InvoiceID.String(),
		"proposer", prop.Proposer,
		"rate_bps", prop.DiscountRateBps,
	)
	e.plugins.EmitDiscountProposed(ctx, prop)
	return prop, nil
}

func counterpartyOf(inv *invoice.Invoice, proposer string) (string, error) {
	switch proposer {
	case inv.Issuer:
		return inv.Payer, nil
	case inv.Payer:
		return inv.Issuer, nil
	default:
		return "", ErrUnauthorized
	}
}

// AcceptDiscount accepts a proposal. Only the counterparty may accept, and
// only before the proposal lapses and while the invoice is unpaid.
func (e *Engine) AcceptDiscount(ctx context.Context, proposalID id.ProposalID) (*discount.Proposal, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var prop *discount.Proposal
	err = e.mutate(ctx, "AcceptDiscount", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if prop, err = tx.GetProposal(ctx, proposalID); err != nil {
				return err
			}
			if prop.Counterparty != caller {
				return ErrUnauthorized
			}
			if prop.Accepted {
				return ErrAlreadyAccepted
			}
			if now >= prop.ValidUntil {
				return ErrExpired
			}
			inv, err := tx.GetInvoice(ctx, prop.InvoiceID)
			if err != nil {
				return err
			}
			if inv.Paid {
				return ErrInvoicePaid
			}
			prop.Accepted = true
			prop.AcceptedAt = now
			prop.Touch()
			return tx.UpdateProposal(ctx, prop)
		})
	}, attribute.String("proposal.id", proposalID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("discount accepted",
		"proposal_id", prop.ID.String(),
		"invoice_id", prop.InvoiceID.String(),
		"counterparty", prop.Counterparty,
	)
	e.plugins.EmitDiscountAccepted(ctx, prop)
	return prop, nil
}

// DiscountedAmount returns the invoice amount less rateBps.
func (e *Engine) DiscountedAmount(ctx context.Context, invID id.InvoiceID, rateBps uint64) (uint64, error) {
	if !types.ValidBps(rateBps) {
		return 0, invalid("rate_bps", "must not exceed 10000")
	}
	inv, err := e.GetInvoice(ctx, invID)
	if err != nil {
		return 0, err
	}
	cut, err := types.ApplyBps(inv.Amount, rateBps)
	if err != nil {
		return 0, err
	}
	return inv.Amount - cut, nil
}

// GetDiscountCurve returns an issuer's discount curve.
func (e *Engine) GetDiscountCurve(ctx context.Context, issuer string) (*discount.Curve, error) {
	var c *discount.Curve
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.GetCurve(ctx, issuer)
		return err
	})
	return c, err
}

// GetProposal retrieves a discount proposal by ID.
func (e *Engine) GetProposal(ctx context.Context, proposalID id.ProposalID) (*discount.Proposal, error) {
	var prop *discount.Proposal
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		prop, err = tx.GetProposal(ctx, proposalID)
		return err
	})
	return prop, err
}

// ListProposals lists the discount proposals of an invoice.
func (e *Engine) ListProposals(ctx context.Context, invID id.InvoiceID) ([]*discount.Proposal, error) {
	var result []*discount.Proposal
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListProposals(ctx, invID)
		return err
	})
	return result, err
}
