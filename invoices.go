package factoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/types"
)

// CreateInvoiceInput describes an invoice to issue. The issuer is the caller.
type CreateInvoiceInput struct {
	Number       string `json:"invoice_number"`
	Payer        string `json:"payer"`
	Amount       uint64 `json:"amount"`
	DueDate      uint64 `json:"due_date"`
	DocumentHash string `json:"document_hash"`
}

// ──────────────────────────────────────────────────
// Invoice Lifecycle
// ──────────────────────────────────────────────────

// CreateInvoice issues a new, unverified and untokenized invoice. The caller
// must hold the issuer role.
func (e *Engine) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*invoice.Invoice, error) {
	issuer, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	number := strings.TrimSpace(in.Number)

	var inv *invoice.Invoice
	err = e.mutate(ctx, "CreateInvoice", func(ctx context.Context, now uint64) error {
		if err := e.requireRole(ctx, issuer, capability.RoleIssuer); err != nil {
			return err
		}
		switch {
		case number == "":
			return invalid("invoice_number", "must not be empty")
		case in.Payer == "":
			return invalid("payer", "must not be empty")
		case in.Amount == 0:
			return invalid("amount", "must be positive")
		case in.DueDate <= now:
			return invalid("due_date", "must be in the future")
		}

		inv = &invoice.Invoice{
			Entity:       types.NewEntity(),
			ID:           id.NewInvoiceID(),
			Number:       number,
			Issuer:       issuer,
			Payer:        in.Payer,
			Amount:       in.Amount,
			DueDate:      in.DueDate,
			DocumentHash: in.DocumentHash,
			IssuedAt:     now,
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.CreateInvoice(ctx, inv); err != nil {
				return err
			}
			_, err := tx.IncrementCounter(ctx, settings.CounterInvoices)
			return err
		})
	}, attribute.String("invoice.number", number))
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice created",
		"invoice_id", inv.ID.String(),
		"invoice_number", inv.Number,
		"issuer", inv.Issuer,
		"amount", inv.Amount,
	)
	e.plugins.EmitInvoiceCreated(ctx, inv)
	return inv, nil
}

// VerifyInvoice marks an invoice verified after checking the caller's
// signature over its document hash. The caller must hold the verifier role.
func (e *Engine) VerifyInvoice(ctx context.Context, invID id.InvoiceID, signature string) (*invoice.Invoice, error) {
	verifier, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err = e.mutate(ctx, "VerifyInvoice", func(ctx context.Context, now uint64) error {
		if err := e.requireRole(ctx, verifier, capability.RoleVerifier); err != nil {
			return err
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if inv, err = tx.GetInvoice(ctx, invID); err != nil {
				return err
			}
			if inv.Verified {
				return ErrAlreadyVerified
			}
			ok, err := e.signatures.IsValid(ctx, inv.ID, inv.DocumentHash, signature, verifier)
			if err != nil {
				return fmt.Errorf("factoring: validate signature: %w", err)
			}
			if !ok {
				return ErrInvalidSignature
			}
			inv.Verified = true
			inv.VerifiedAt = now
			inv.Touch()
			return tx.UpdateInvoice(ctx, inv)
		})
	}, attribute.String("invoice.id", invID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice verified", "invoice_id", inv.ID.String(), "verifier", verifier)
	e.plugins.EmitInvoiceVerified(ctx, inv)
	return inv, nil
}

// TokenizeInvoice splits a verified invoice into fractionCount shares and
// credits all of them to the issuer. It succeeds at most once per invoice.
func (e *Engine) TokenizeInvoice(ctx context.Context, invID id.InvoiceID, fractionCount uint64) (*invoice.Invoice, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if fractionCount == 0 {
		return nil, invalid("fraction_count", "must be positive")
	}

	var inv *invoice.Invoice
	err = e.mutate(ctx, "TokenizeInvoice", func(ctx context.Context, _ uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if inv, err = tx.GetInvoice(ctx, invID); err != nil {
				return err
			}
			switch {
			case inv.Issuer != caller:
				return ErrUnauthorized
			case !inv.Verified:
				return ErrNotVerified
			case inv.Tokenized():
				return ErrAlreadyTokenized
			}
			inv.FractionCount = fractionCount
			inv.TotalSupply = fractionCount
			inv.Touch()
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			return tx.SetHolding(ctx, inv.ID, inv.Issuer, fractionCount)
		})
	}, attribute.String("invoice.id", invID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice tokenized",
		"invoice_id", inv.ID.String(),
		"fraction_count", inv.FractionCount,
	)
	e.plugins.EmitInvoiceTokenized(ctx, inv)
	return inv, nil
}

// TransferShares moves amount shares of an invoice from the caller to
// recipient. A zero amount or a transfer to oneself is validated and then
// leaves balances unchanged.
func (e *Engine) TransferShares(ctx context.Context, invID id.InvoiceID, recipient string, amount uint64) error {
	sender, err := callerOf(ctx)
	if err != nil {
		return err
	}
	if recipient == "" {
		return invalid("recipient", "must not be empty")
	}

	moved := false
	err = e.mutate(ctx, "TransferShares", func(ctx context.Context, _ uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.GetInvoice(ctx, invID); err != nil {
				return err
			}
			from, err := tx.GetHolding(ctx, invID, sender)
			if err != nil {
				return err
			}
			if amount > from {
				return ErrInsufficientShares
			}
			if amount == 0 || recipient == sender {
				return nil
			}
			to, err := tx.GetHolding(ctx, invID, recipient)
			if err != nil {
				return err
			}
			credited, err := types.Add(to, amount)
			if err != nil {
				return err
			}
			if err := tx.SetHolding(ctx, invID, sender, from-amount); err != nil {
				return err
			}
			if err := tx.SetHolding(ctx, invID, recipient, credited); err != nil {
				return err
			}
			moved = true
			return nil
		})
	}, attribute.String("invoice.id", invID.String()))
	if err != nil || !moved {
		return err
	}

	e.logger.Debug("shares transferred",
		"invoice_id", invID.String(),
		"from", sender,
		"to", recipient,
		"amount", amount,
	)
	e.plugins.EmitSharesTransferred(ctx, invID, sender, recipient, amount)
	return nil
}

// MarkInvoicePaid records that the payer settled the invoice. It closes the
// early-payment discount window.
func (e *Engine) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err = e.mutate(ctx, "MarkInvoicePaid", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if inv, err = tx.GetInvoice(ctx, invID); err != nil {
				return err
			}
			if inv.Payer != caller {
				return ErrUnauthorized
			}
			if inv.Paid {
				return ErrInvoicePaid
			}
			inv.Paid = true
			inv.PaidAt = now
			inv.Touch()
			return tx.UpdateInvoice(ctx, inv)
		})
	}, attribute.String("invoice.id", invID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice paid", "invoice_id", inv.ID.String(), "payer", inv.Payer)
	e.plugins.EmitInvoicePaid(ctx, inv)
	return inv, nil
}

// ──────────────────────────────────────────────────
// Invoice Reads
// ──────────────────────────────────────────────────

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, invID)
		return err
	})
	return inv, err
}

// GetInvoiceByNumber retrieves an invoice by its external number.
func (e *Engine) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		inv, err = tx.GetInvoiceByNumber(ctx, number)
		return err
	})
	return inv, err
}

// ListInvoices lists invoices matching opts.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var result []*invoice.Invoice
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListInvoices(ctx, opts)
		return err
	})
	return result, err
}

// BalanceOf returns holder's share balance. An unknown holder of an existing
// invoice has a zero balance.
func (e *Engine) BalanceOf(ctx context.Context, invID id.InvoiceID, holder string) (uint64, error) {
	var balance uint64
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetInvoice(ctx, invID); err != nil {
			return err
		}
		var err error
		balance, err = tx.GetHolding(ctx, invID, holder)
		return err
	})
	return balance, err
}

// TotalSupply returns the number of shares minted for an invoice.
func (e *Engine) TotalSupply(ctx context.Context, invID id.InvoiceID) (uint64, error) {
	inv, err := e.GetInvoice(ctx, invID)
	if err != nil {
		return 0, err
	}
	return inv.TotalSupply, nil
}

// Holdings lists the non-zero share balances of an invoice.
func (e *Engine) Holdings(ctx context.Context, invID id.InvoiceID) ([]*invoice.Holding, error) {
	var result []*invoice.Holding
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetInvoice(ctx, invID); err != nil {
			return err
		}
		var err error
		result, err = tx.ListHoldings(ctx, invID)
		return err
	})
	return result, err
}

// CheckConservation verifies that an invoice's holdings sum to its total
// supply.
func (e *Engine) CheckConservation(ctx context.Context, invID id.InvoiceID) error {
	return e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		inv, err := tx.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		holdings, err := tx.ListHoldings(ctx, invID)
		if err != nil {
			return err
		}
		var sum uint64
		for _, h := range holdings {
			if sum, err = types.Add(sum, h.Shares); err != nil {
				return errors.Join(ErrConservationViolated, err)
			}
		}
		if sum != inv.TotalSupply {
			return fmt.Errorf("%w: holdings %d, supply %d", ErrConservationViolated, sum, inv.TotalSupply)
		}
		return nil
	})
}
