package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/factoring/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"ListingID", id.NewListingID, "lst_"},
		{"AgreementID", id.NewAgreementID, "agr_"},
		{"PoolID", id.NewPoolID, "pool_"},
		{"RouteID", id.NewRouteID, "rte_"},
		{"SwapID", id.NewSwapID, "swap_"},
		{"ProposalID", id.NewProposalID, "dprop_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixInvoice)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixInvoice {
		t.Errorf("expected prefix %q, got %q", id.PrefixInvoice, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"ListingID", id.NewListingID, id.ParseListingID},
		{"AgreementID", id.NewAgreementID, id.ParseAgreementID},
		{"PoolID", id.NewPoolID, id.ParsePoolID},
		{"RouteID", id.NewRouteID, id.ParseRouteID},
		{"SwapID", id.NewSwapID, id.ParseSwapID},
		{"ProposalID", id.NewProposalID, id.ParseProposalID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseInvoiceID rejects lst_", id.NewListingID().String(), id.ParseInvoiceID},
		{"ParseListingID rejects agr_", id.NewAgreementID().String(), id.ParseListingID},
		{"ParseAgreementID rejects pool_", id.NewPoolID().String(), id.ParseAgreementID},
		{"ParsePoolID rejects rte_", id.NewRouteID().String(), id.ParsePoolID},
		{"ParseRouteID rejects swap_", id.NewSwapID().String(), id.ParseRouteID},
		{"ParseSwapID rejects dprop_", id.NewProposalID().String(), id.ParseSwapID},
		{"ParseProposalID rejects inv_", id.NewInvoiceID().String(), id.ParseProposalID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewPoolID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixPool)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixRoute)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewListingID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewAgreementID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewSwapID()
	b := id.NewSwapID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewSwapID() calls returned the same ID: %q", a.String())
	}
}
