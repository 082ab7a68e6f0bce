// Package api exposes the factoring engine over HTTP using chi.
//
// The calling principal is taken from the X-Caller header. Authentication is
// left to whatever sits in front of the service; the engine's Access
// capability decides what each principal may do.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/id"
)

// CallerHeader carries the principal performing a request.
const CallerHeader = "X-Caller"

// Handler serves the factoring HTTP API.
type Handler struct {
	engine *factoring.Engine
	logger *slog.Logger
}

// New creates a Handler. A nil logger uses slog.Default.
func New(engine *factoring.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// NewRouter builds the complete router for engine.
func NewRouter(engine *factoring.Engine, logger *slog.Logger) http.Handler {
	return New(engine, logger).Routes()
}

// Routes returns a router with every endpoint mounted at its root.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withCaller)

	r.Get("/healthz", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)
	r.Post("/sweep", h.Sweep)

	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.CreateInvoice)
		r.Get("/", h.ListInvoices)
		r.Get("/by-number/{number}", h.GetInvoiceByNumber)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetInvoice)
			r.Post("/verify", h.VerifyInvoice)
			r.Post("/tokenize", h.TokenizeInvoice)
			r.Post("/transfer", h.TransferShares)
			r.Post("/paid", h.MarkInvoicePaid)
			r.Get("/balances/{holder}", h.BalanceOf)
			r.Get("/holdings", h.Holdings)
			r.Get("/supply", h.TotalSupply)
			r.Get("/listing", h.ListingForToken)
			r.Get("/discount-rate", h.SuggestedDiscountRate)
			r.Get("/proposals", h.ListProposals)
		})
	})

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.ListInvoice)
		r.Get("/", h.ListListings)
		r.Get("/{id}", h.GetListing)
		r.Post("/{id}/cancel", h.CancelListing)
	})

	r.Route("/agreements", func(r chi.Router) {
		r.Post("/", h.CreatePurchaseAgreement)
		r.Get("/", h.ListAgreements)
		r.Get("/{id}", h.GetAgreement)
		r.Post("/{id}/execute", h.ExecutePurchase)
		r.Post("/{id}/default", h.DefaultAgreement)
	})

	r.Route("/pools", func(r chi.Router) {
		r.Post("/", h.CreatePool)
		r.Get("/", h.ListPools)
		r.Get("/{id}", h.GetPool)
		r.Put("/{id}/reserves", h.UpdateReserves)
		r.Put("/{id}/enabled", h.SetPoolEnabled)
		r.Get("/{id}/quote", h.QuotePool)
	})

	r.Route("/routes", func(r chi.Router) {
		r.Post("/", h.GetBestRoute)
		r.Get("/{id}", h.GetRoute)
		r.Post("/{id}/execute", h.ExecuteSwap)
	})

	r.Route("/swaps", func(r chi.Router) {
		r.Get("/", h.ListSwaps)
		r.Get("/{id}", h.GetSwap)
	})

	r.Get("/gas", h.EstimateGas)

	r.Route("/discounts", func(r chi.Router) {
		r.Post("/curve", h.SetDiscountCurve)
		r.Get("/curve/{issuer}", h.GetDiscountCurve)
		r.Post("/", h.ProposeDiscount)
		r.Get("/{id}", h.GetProposal)
		r.Post("/{id}/accept", h.AcceptDiscount)
	})

	return r
}

// Health reports store connectivity.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Store().Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal := r.Header.Get(CallerHeader); principal != "" {
			r = r.WithContext(factoring.WithCaller(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusOf maps engine errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case factoring.IsNotFound(err):
		return http.StatusNotFound
	case factoring.IsAuthorization(err):
		return http.StatusForbidden
	case errors.Is(err, factoring.ErrInvalidParams):
		return http.StatusUnprocessableEntity
	case errors.Is(err, factoring.ErrExpired):
		return http.StatusGone
	case errors.Is(err, factoring.ErrSlippageTooHigh):
		return http.StatusConflict
	case factoring.IsInsufficient(err):
		return http.StatusPaymentRequired
	case factoring.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, factoring.ErrSettlementFailed):
		return http.StatusBadGateway
	case errors.Is(err, factoring.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	resp := errorResponse{Error: err.Error()}
	var verr factoring.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return factoring.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// pathID parses the {id} URL parameter with the given parser.
func pathID(r *http.Request, parse func(string) (id.ID, error)) (id.ID, error) {
	parsed, err := parse(chi.URLParam(r, "id"))
	if err != nil {
		return id.ID{}, factoring.ValidationError{Field: "id", Message: err.Error()}
	}
	return parsed, nil
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, factoring.ValidationError{Field: key, Message: "must be an unsigned integer"}
	}
	return v, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v, err := queryUint(r, key)
	if err != nil {
		return 0, err
	}
	return int(min(v, 1<<31-1)), nil
}
