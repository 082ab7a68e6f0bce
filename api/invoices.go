package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
)

// CreateInvoice issues an invoice as the caller.
// POST /invoices
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in factoring.CreateInvoiceInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.engine.CreateInvoice(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// ListInvoices lists invoices filtered by issuer, payer and verified.
// GET /invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := invoice.ListOpts{Issuer: q.Get("issuer"), Payer: q.Get("payer")}
	if raw := q.Get("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, factoring.ValidationError{Field: "verified", Message: "must be a boolean"})
			return
		}
		opts.Verified = &verified
	}
	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		h.fail(w, r, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		h.fail(w, r, err)
		return
	}
	invoices, err := h.engine.ListInvoices(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// GetInvoice returns one invoice.
// GET /invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.engine.GetInvoice(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// GetInvoiceByNumber looks an invoice up by its business number.
// GET /invoices/by-number/{number}
func (h *Handler) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.GetInvoiceByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// VerifyInvoice verifies an invoice with the caller's signature.
// POST /invoices/{id}/verify
func (h *Handler) VerifyInvoice(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		Signature string `json:"signature"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.engine.VerifyInvoice(r.Context(), invID, body.Signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// TokenizeInvoice mints fractional shares to the issuer.
// POST /invoices/{id}/tokenize
func (h *Handler) TokenizeInvoice(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		FractionCount uint64 `json:"fraction_count"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.engine.TokenizeInvoice(r.Context(), invID, body.FractionCount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// TransferShares moves shares from the caller to a recipient.
// POST /invoices/{id}/transfer
func (h *Handler) TransferShares(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		Recipient string `json:"recipient"`
		Amount    uint64 `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.TransferShares(r.Context(), invID, body.Recipient, body.Amount); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkInvoicePaid records payment of an invoice.
// POST /invoices/{id}/paid
func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.engine.MarkInvoicePaid(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// BalanceOf returns a holder's share balance.
// GET /invoices/{id}/balances/{holder}
func (h *Handler) BalanceOf(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	holder := chi.URLParam(r, "holder")
	balance, err := h.engine.BalanceOf(r.Context(), invID, holder)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holder": holder, "balance": balance})
}

// Holdings lists the non-zero balances of an invoice.
// GET /invoices/{id}/holdings
func (h *Handler) Holdings(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	holdings, err := h.engine.Holdings(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

// TotalSupply returns the minted share count.
// GET /invoices/{id}/supply
func (h *Handler) TotalSupply(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	supply, err := h.engine.TotalSupply(r.Context(), invID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"total_supply": supply})
}
