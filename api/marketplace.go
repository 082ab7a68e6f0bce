package api

import (
	"net/http"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/listing"
)

// ListInvoice lists an invoice token for sale by the caller.
// POST /listings
func (h *Handler) ListInvoice(w http.ResponseWriter, r *http.Request) {
	var in factoring.ListInvoiceInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.ListInvoice(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListListings lists listings filtered by seller and status.
// GET /listings
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := listing.ListOpts{Seller: q.Get("seller"), Status: listing.Status(q.Get("status"))}
	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		h.fail(w, r, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		h.fail(w, r, err)
		return
	}
	listings, err := h.engine.ListListings(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// GetListing returns one listing.
// GET /listings/{id}
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := pathID(r, id.ParseListingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.GetListing(r.Context(), listingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ListingForToken returns the active listing of an invoice token.
// GET /invoices/{id}/listing
func (h *Handler) ListingForToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathID(r, id.ParseInvoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.ListingForToken(r.Context(), tokenID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// CancelListing withdraws an active listing.
// POST /listings/{id}/cancel
func (h *Handler) CancelListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := pathID(r, id.ParseListingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.CancelListing(r.Context(), listingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// CreatePurchaseAgreement opens an agreement with the caller as buyer.
// POST /agreements
func (h *Handler) CreatePurchaseAgreement(w http.ResponseWriter, r *http.Request) {
	var in factoring.PurchaseInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.engine.CreatePurchaseAgreement(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAgreements lists agreements filtered by buyer, seller and status.
// GET /agreements
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := agreement.ListOpts{
		Buyer:  q.Get("buyer"),
		Seller: q.Get("seller"),
		Status: agreement.Status(q.Get("status")),
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
	agreements, err := h.engine.ListAgreements(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agreements)
}

// GetAgreement returns one agreement.
// GET /agreements/{id}
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	agreementID, err := pathID(r, id.ParseAgreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.engine.GetAgreement(r.Context(), agreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ExecutePurchase settles an agreement as its buyer.
// POST /agreements/{id}/execute
func (h *Handler) ExecutePurchase(w http.ResponseWriter, r *http.Request) {
	agreementID, err := pathID(r, id.ParseAgreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.engine.ExecutePurchase(r.Context(), agreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DefaultAgreement marks an overdue agreement defaulted.
// POST /agreements/{id}/default
func (h *Handler) DefaultAgreement(w http.ResponseWriter, r *http.Request) {
	agreementID, err := pathID(r, id.ParseAgreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.engine.DefaultAgreement(r.Context(), agreementID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Sweep defaults overdue agreements and expires stale listings.
// POST /sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SweepDefaults(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
