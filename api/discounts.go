package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

// SetDiscountCurve replaces the caller's discount curve.
// POST /discounts/curve
func (h *Handler) SetDiscountCurve(w http.ResponseWriter, r *http.Request) {
	var in factoring.DiscountCurveInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.engine.SetDiscountCurve(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetDiscountCurve returns an issuer's curve.
// GET /discounts/curve/{issuer}
func (h *Handler) GetDiscountCurve(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetDiscountCurve(r.Context(), chi.URLParam(r, "issuer"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SuggestedDiscountRate returns the curve rate for an invoice now, with the
// amount the invoice would settle for at that rate.
// GET /invoices/{id}/discount-rate
func (h *Handler) SuggestedDiscountRate(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rate, err := h.engine.SuggestedDiscountRate(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	discounted, err := h.engine.DiscountedAmount(r.Context(), invID, rate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rate_bps":          rate,
		"rate":              types.BpsPercent(rate),
		"discounted_amount": discounted,
	})
}

// ProposeDiscount offers early payment at a discount.
// POST /discounts
func (h *Handler) ProposeDiscount(w http.ResponseWriter, r *http.Request) {
	var in factoring.ProposeDiscountInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	prop, err := h.engine.ProposeDiscount(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prop)
}

// GetProposal returns one discount proposal.
// GET /discounts/{id}
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, id.ParseProposalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	prop, err := h.engine.GetProposal(r.Context(), proposalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

// ListProposals lists the proposals made on an invoice.
// GET /invoices/{id}/proposals
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	props, err := h.engine.ListProposals(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// AcceptDiscount accepts a proposal as its counterparty.
// POST /discounts/{id}/accept
func (h *Handler) AcceptDiscount(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, id.ParseProposalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	prop, err := h.engine.AcceptDiscount(r.Context(), proposalID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}
