package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/api"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/store/memory"
)

const (
	issuer   = "acme-supplies"
	verifier = "audit-co"
	admin    = "ops-admin"
	trader   = "fund-one"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	access := mock.NewAccess()
	access.Grant(issuer, capability.RoleIssuer)
	access.Grant(verifier, capability.RoleVerifier)
	access.Grant(admin, capability.RoleAdmin)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := factoring.New(memory.New(),
		factoring.WithLogger(logger),
		factoring.WithClock(clock.NewManual(100)),
		factoring.WithAccess(access),
		factoring.WithSignatures(capability.AcceptAnySignature),
		factoring.WithOwnership(mock.NewOwnership()),
		factoring.WithPayments(mock.NewPayments()),
		factoring.WithChains(mock.NewChains(1)),
		factoring.WithSweepInterval(0),
	)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })
	return api.NewRouter(engine, logger)
}

func do(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(api.CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type idBody struct {
	ID string `json:"id"`
}

func createInvoice(t *testing.T, h http.Handler, number string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/invoices", issuer, map[string]any{
		"invoice_number": number,
		"payer":          "bigbox-retail",
		"amount":         100_000,
		"due_date":       1000,
		"document_hash":  "sha256:abc",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[idBody](t, rec).ID
}

func TestHealth(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestInvoiceFlow(t *testing.T) {
	h := newServer(t)
	invID := createInvoice(t, h, "INV-1")

	rec := do(t, h, http.MethodGet, "/invoices/by-number/INV-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, invID, decodeBody[idBody](t, rec).ID)

	rec = do(t, h, http.MethodPost, "/invoices/"+invID+"/verify", verifier, map[string]string{"signature": "sig"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/invoices/"+invID+"/tokenize", issuer, map[string]uint64{"fraction_count": 1000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/invoices/"+invID+"/transfer", issuer, map[string]any{"recipient": trader, "amount": 250})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/invoices/"+invID+"/balances/"+trader, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decodeBody[struct {
		Holder  string `json:"holder"`
		Balance uint64 `json:"balance"`
	}](t, rec)
	assert.Equal(t, trader, balance.Holder)
	assert.Equal(t, uint64(250), balance.Balance)

	rec = do(t, h, http.MethodGet, "/invoices/"+invID+"/supply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1000), decodeBody[map[string]uint64](t, rec)["total_supply"])

	rec = do(t, h, http.MethodGet, "/invoices/"+invID+"/holdings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), decodeBody[factoring.Stats](t, rec).Invoices)
}

func TestErrorStatus(t *testing.T) {
	h := newServer(t)
	createInvoice(t, h, "INV-1")
	valid := map[string]any{"invoice_number": "INV-2", "payer": "p", "amount": 1, "due_date": 1000}

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		status int
		field  string
	}{
		{"no caller", http.MethodPost, "/invoices", "", valid, http.StatusForbidden, ""},
		{"not issuer", http.MethodPost, "/invoices", trader, valid, http.StatusForbidden, ""},
		{"duplicate number", http.MethodPost, "/invoices", issuer,
			map[string]any{"invoice_number": "INV-1", "payer": "p", "amount": 1, "due_date": 1000}, http.StatusConflict, ""},
		{"zero amount", http.MethodPost, "/invoices", issuer,
			map[string]any{"invoice_number": "INV-3", "payer": "p", "amount": 0, "due_date": 1000}, http.StatusUnprocessableEntity, "amount"},
		{"unknown field", http.MethodPost, "/invoices", issuer,
			map[string]any{"invoice_number": "INV-4", "colour": "red"}, http.StatusUnprocessableEntity, "body"},
		{"malformed id", http.MethodGet, "/invoices/not-an-id", "", nil, http.StatusUnprocessableEntity, "id"},
		{"wrong id prefix", http.MethodGet, "/invoices/" + id.NewPoolID().String(), "", nil, http.StatusUnprocessableEntity, "id"},
		{"unknown invoice", http.MethodGet, "/invoices/" + id.NewInvoiceID().String(), "", nil, http.StatusNotFound, ""},
		{"unknown listing", http.MethodGet, "/listings/" + id.NewListingID().String(), "", nil, http.StatusNotFound, ""},
		{"unknown agreement", http.MethodPost, "/agreements/" + id.NewAgreementID().String() + "/default", "", nil, http.StatusNotFound, ""},
		{"no route", http.MethodPost, "/routes", trader,
			map[string]any{"input_token": "USDC", "output_token": "EURC", "input_amount": 10}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.caller, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestSwapRoutes(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/pools", admin, map[string]any{
		"token_a":      "USDC",
		"token_b":      "INV",
		"reserve_a":    1_000_000,
		"reserve_b":    1_000_000,
		"fee_rate_bps": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[struct {
		ID        string `json:"id"`
		SpotPrice string `json:"spot_price"`
		Fee       string `json:"fee"`
		ChainID   uint64 `json:"chain_id"`
	}](t, rec)
	assert.Equal(t, "1", created.SpotPrice)
	assert.Equal(t, "0.30%", created.Fee)
	assert.Equal(t, uint64(1), created.ChainID)

	rec = do(t, h, http.MethodGet, "/pools/"+created.ID+"/quote?token_in=USDC&amount=1000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, uint64(996), decodeBody[factoring.Quote](t, rec).Output)

	rec = do(t, h, http.MethodPost, "/routes", trader, map[string]any{
		"input_token": "USDC", "output_token": "INV", "input_amount": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	route := decodeBody[struct {
		ID              string `json:"id"`
		EstimatedOutput uint64 `json:"estimated_output"`
	}](t, rec)
	assert.Equal(t, uint64(996), route.EstimatedOutput)

	rec = do(t, h, http.MethodPatch, "/settings", admin, map[string]bool{"aggregator_enabled": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	exec := map[string]uint64{"min_output": 990, "max_slippage_bps": 100}
	rec = do(t, h, http.MethodPost, "/routes/"+route.ID+"/execute", trader, exec)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/settings", admin, map[string]bool{"aggregator_enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/routes/"+route.ID+"/execute", trader, exec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	swapped := decodeBody[idBody](t, rec)

	rec = do(t, h, http.MethodGet, "/swaps/"+swapped.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/routes/"+route.ID+"/execute", trader, exec)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/gas?complexity=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(100_000), decodeBody[map[string]uint64](t, rec)["gas"])

	rec = do(t, h, http.MethodGet, "/gas?chain_id=7", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettingsPatchValidation(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPatch, "/settings", admin, map[string]uint64{"max_slippage_bps": 900})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPatch, "/settings", trader, map[string]uint64{"marketplace_fee_bps": 100})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPatch, "/settings", admin, map[string]any{
		"marketplace_fee_bps": 100,
		"platform_address":    "treasury",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 100, s["marketplace_fee_bps"])
	assert.Equal(t, "treasury", s["platform_address"])
}
