package formance

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		currency string
		want     string
	}{
		{"inr", "INR/2"},
		{"USD", "USD/2"},
		{"jpy", "JPY/0"},
		{"XYZ", "XYZ/2"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.currency); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.currency, got, tt.want)
		}
	}
}

func TestAssetSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"INR/2", "INR"},
		{"JPY/0", "JPY"},
		{"PLAIN", "PLAIN"},
	}
	for _, tt := range tests {
		if got := assetSymbol(tt.input); got != tt.want {
			t.Errorf("assetSymbol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"2500", "inr", "250000"},
		{"10.25", "INR", "1025"},
		{"0.009", "inr", "0"},
		{"1500", "jpy", "1500"},
	}
	for _, tt := range tests {
		got := toSmallestUnit(decimal.RequireFromString(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("toSmallestUnit(%s, %s) = %s, want %s", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestProviderAmountsRoundTrip(t *testing.T) {
	for _, c := range []string{"inr", "usd", "jpy", "gbp"} {
		major := payments.MinorToMajor(123456, c)
		if got := toSmallestUnit(major, c); got != "123456" {
			t.Errorf("%s: provider amount %s posted as %s minor units, want 123456", c, major, got)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	result := bigIntToDecimal(big.NewInt(250000), "INR")
	if !result.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("expected 2500, got %s", result.String())
	}

	result = bigIntToDecimal(nil, "INR")
	if !result.IsZero() {
		t.Errorf("expected 0, got %s", result.String())
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"INR/2": {Input: big.NewInt(500), Output: big.NewInt(200)},
	}
	if got := volumeBalance(vols, "INR/2"); got == nil || got.Int64() != 300 {
		t.Errorf("expected balance 300, got %v", got)
	}
	if got := volumeBalance(vols, "USD/2"); got != nil {
		t.Errorf("expected nil for unknown asset, got %v", got)
	}
}

func TestSettlementScript(t *testing.T) {
	tests := []struct {
		kind   string
		script string
		ok     bool
	}{
		{models.SettlementDeposit, numscriptSettlementReceived, true},
		{models.SettlementInvestment, numscriptSettlementReceived, true},
		{models.SettlementRefund, numscriptSettlementRefunded, true},
		{models.SettlementSubscriptionStarted, "", false},
	}
	for _, tt := range tests {
		got, ok := settlementScript(tt.kind)
		if ok != tt.ok || got != tt.script {
			t.Errorf("settlementScript(%q) = ok %v, want ok %v", tt.kind, ok, tt.ok)
		}
	}
}

func TestSettlementReference(t *testing.T) {
	st := models.Settlement{EventId: "evt_1", Kind: models.SettlementRefund, OccurredAt: time.Now()}
	if got := settlementReference(st); got != "evt_1-refund" {
		t.Errorf("settlementReference = %q", got)
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isConflictError(errors.New("boom")) {
		t.Error("plain error should not be a conflict error")
	}
	conflict := &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict, ErrorMessage: "duplicate reference"}
	if !isConflictError(fmt.Errorf("wrapped: %w", conflict)) {
		t.Error("wrapped conflict should be detected")
	}
	if isNotFoundError(conflict) {
		t.Error("conflict should not be reported as not found")
	}
}
